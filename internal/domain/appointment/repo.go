package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/availability"
)

// Repository persists appointments. Implementations resolve their querier
// from the context so that calls participate in an ambient transaction.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
}

// SlotStore is the slice of the availability store the booking engine needs.
// availability.Repository satisfies it.
type SlotStore interface {
	FindSlot(ctx context.Context, doctorID uuid.UUID, dayOfWeek int, at string) (*availability.Slot, error)
	ClaimToken(ctx context.Context, key availability.SlotKey, token int) (bool, error)
	ReleaseToken(ctx context.Context, key availability.SlotKey, token int) error
}
