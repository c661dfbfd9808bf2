package availability

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
)

// OffDay is the weekday with no bookable schedule. Day numbering follows
// time.Weekday: 0 is Sunday.
const OffDay = 0

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether s is a well-formed zero-padded HH:mm time.
// Zero-padded 24h times compare correctly as strings, which the slot
// interval lookup relies on.
func ValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// Slot is one bookable interval within a doctor's day. BookedTokens holds
// the claimed token numbers, each in [1, TokenCount].
type Slot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	HoursAvailable int       `db:"hours_available" json:"hours_available"`
	TokenCount     int       `db:"token_count" json:"token_count"`
	BookedTokens   []int     `db:"booked_tokens" json:"booked_tokens"`
}

// Validate checks the slot's structural invariants.
func (s *Slot) Validate() error {
	if !ValidTime(s.StartTime) {
		return apperr.Validation("start_time %q is not a valid HH:mm time", s.StartTime)
	}
	if !ValidTime(s.EndTime) {
		return apperr.Validation("end_time %q is not a valid HH:mm time", s.EndTime)
	}
	if s.EndTime <= s.StartTime {
		return apperr.Validation("slot end_time %s must be after start_time %s", s.EndTime, s.StartTime)
	}
	if s.HoursAvailable < 1 {
		return apperr.Validation("hours_available must be at least 1")
	}
	if s.TokenCount < 1 {
		return apperr.Validation("token_count must be at least 1")
	}
	seen := make(map[int]bool, len(s.BookedTokens))
	for _, t := range s.BookedTokens {
		if t < 1 || t > s.TokenCount {
			return apperr.Validation("booked token %d outside [1, %d]", t, s.TokenCount)
		}
		if seen[t] {
			return apperr.Validation("booked token %d appears twice", t)
		}
		seen[t] = true
	}
	return nil
}

// Contains reports whether the HH:mm time falls within the slot, bounds
// inclusive.
func (s *Slot) Contains(hhmm string) bool {
	return s.StartTime <= hhmm && hhmm <= s.EndTime
}

// IsBooked reports whether the token number is already claimed.
func (s *Slot) IsBooked(token int) bool {
	for _, t := range s.BookedTokens {
		if t == token {
			return true
		}
	}
	return false
}

// WeeklySchedule is a doctor's slot set for one weekday. At most one exists
// per (doctor_id, day_of_week).
type WeeklySchedule struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	HospitalID    *uuid.UUID `db:"hospital_id" json:"hospital_id"`
	BranchID      *uuid.UUID `db:"branch_id" json:"branch_id"`
	DayOfWeek     int        `db:"day_of_week" json:"day_of_week"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	AddedByUserID uuid.UUID  `db:"added_by_user_id" json:"added_by_user_id"`
	AddedByRole   string     `db:"added_by_role" json:"added_by_role"`
	AddedByName   string     `db:"added_by_name" json:"added_by_name"`
	Slots         []Slot     `json:"slots"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks the schedule's invariants, including that slots are
// non-overlapping. The off day is rejected before this point by the service.
func (w *WeeklySchedule) Validate() error {
	if w.DoctorID == uuid.Nil {
		return apperr.Validation("doctor_id is required")
	}
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return apperr.Validation("day_of_week must be in [0, 6], got %d", w.DayOfWeek)
	}
	if len(w.Slots) == 0 {
		return apperr.Validation("at least one slot is required")
	}
	for i := range w.Slots {
		if err := w.Slots[i].Validate(); err != nil {
			return err
		}
	}
	for i := 1; i < len(w.Slots); i++ {
		prev, cur := &w.Slots[i-1], &w.Slots[i]
		if cur.StartTime < prev.StartTime {
			return apperr.Validation("slots must be ordered by start_time")
		}
		if cur.StartTime <= prev.EndTime {
			return apperr.Validation("slot %s-%s overlaps %s-%s",
				cur.StartTime, cur.EndTime, prev.StartTime, prev.EndTime)
		}
	}
	return nil
}

// SlotKey identifies a slot by its full composite identity. Token claims key
// on it so that a concurrently replaced schedule can never satisfy a stale
// claim.
type SlotKey struct {
	DoctorID  uuid.UUID
	DayOfWeek int
	StartTime string
	EndTime   string
}
