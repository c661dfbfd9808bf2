package availability

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// UpsertDay replaces the schedule for (doctor_id, day_of_week) with ws,
	// slots included. Booked tokens are carried over for slots whose
	// (start_time, end_time) bounds survive the replace; slots with new
	// bounds start unclaimed. Runs on the context's transaction when one
	// is open.
	UpsertDay(ctx context.Context, ws *WeeklySchedule) error
	GetDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WeeklySchedule, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error)
	DeleteDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) error

	// FindSlot returns the slot of the doctor's active schedule whose
	// interval contains the HH:mm time, bounds inclusive.
	FindSlot(ctx context.Context, doctorID uuid.UUID, dayOfWeek int, hhmm string) (*Slot, error)

	// ClaimToken appends the token to the slot's booked set in a single
	// conditional update keyed on the slot's full identity. It reports false
	// when the token was already present, i.e. this caller lost the race.
	ClaimToken(ctx context.Context, key SlotKey, token int) (bool, error)

	// ReleaseToken removes the token from the slot's booked set. Removing a
	// token that is not present is a no-op.
	ReleaseToken(ctx context.Context, key SlotKey, token int) error
}
