package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// validNext encodes the lifecycle: scheduled → confirmed → completed, with
// cancellation allowed from any non-terminal state. Backward moves and
// terminal-state exits are rejected.
var validNext = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a status string from a request.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", apperr.Validation("unknown status %q", s)
}

// CanTransitionTo reports whether next is a legal successor state.
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range validNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Appointment is one booked token against a doctor's slot. DayOfWeek,
// SlotStart and SlotEnd record the claimed slot's full identity as resolved
// at booking time, so that cancellation can release the token even if the
// weekly schedule has since been replaced or the stored timestamp renders in
// a different zone than the request carried.
type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID  uuid.UUID `db:"hospital_id" json:"hospital_id"`
	BranchID    uuid.UUID `db:"branch_id" json:"branch_id"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	Type        string    `db:"type" json:"type"`
	Status      Status    `db:"status" json:"status"`
	TokenNumber int       `db:"token_number" json:"token_number"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	SlotStart   string    `db:"slot_start" json:"slot_start"`
	SlotEnd     string    `db:"slot_end" json:"slot_end"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	BookedBy    uuid.UUID `db:"booked_by" json:"booked_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
