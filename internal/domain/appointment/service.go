package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/availability"
	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/db"
)

// Service implements the booking engine: token claims against availability
// slots, appointment lifecycle transitions, and scoped reads.
type Service struct {
	repo  Repository
	slots SlotStore
	tx    db.TxRunner
	log   zerolog.Logger
}

func NewService(repo Repository, slots SlotStore, tx db.TxRunner, log zerolog.Logger) *Service {
	return &Service{repo: repo, slots: slots, tx: tx, log: log.With().Str("component", "appointment").Logger()}
}

// BookingRequest carries the fields of a booking call. HospitalID and
// BranchID are only honored for master_admin; scoped roles book into their
// own scope.
type BookingRequest struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	StartsAt    time.Time
	Type        string
	TokenNumber int
	Notes       *string
	HospitalID  *uuid.UUID
	BranchID    *uuid.UUID
}

func (r *BookingRequest) validate() error {
	switch {
	case r.PatientID == uuid.Nil:
		return apperr.Validation("patient_id is required")
	case r.DoctorID == uuid.Nil:
		return apperr.Validation("doctor_id is required")
	case r.StartsAt.IsZero():
		return apperr.Validation("datetime is required")
	case r.Type == "":
		return apperr.Validation("type is required")
	}
	return nil
}

// Book claims a token for the patient and creates the appointment. The
// appointment insert and the token claim commit or fail together; a lost
// claim race aborts the whole booking.
func (s *Service) Book(ctx context.Context, tc tenant.Context, req BookingRequest) (*Appointment, error) {
	if tc.Role != tenant.RoleReceptionist {
		return nil, apperr.PermissionDenied("only receptionists can book appointments")
	}
	scope := tenant.ScopedRecord{HospitalID: req.HospitalID, BranchID: req.BranchID}
	if err := tc.AuthorizeCreation(&scope); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	dayOfWeek := int(req.StartsAt.Weekday())
	at := req.StartsAt.Format("15:04")

	slot, err := s.slots.FindSlot(ctx, req.DoctorID, dayOfWeek, at)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, apperr.DoctorUnavailable("doctor has no available slot at the requested time")
		}
		return nil, err
	}
	if req.TokenNumber < 1 || req.TokenNumber > slot.TokenCount {
		return nil, apperr.InvalidToken("token %d is out of range 1..%d", req.TokenNumber, slot.TokenCount)
	}
	if slot.IsBooked(req.TokenNumber) {
		return nil, apperr.TokenAlreadyBooked("token is already booked for this slot")
	}

	appt := &Appointment{
		ID:          uuid.New(),
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		HospitalID:  *scope.HospitalID,
		BranchID:    *scope.BranchID,
		StartsAt:    req.StartsAt,
		Type:        req.Type,
		Status:      StatusScheduled,
		TokenNumber: req.TokenNumber,
		DayOfWeek:   dayOfWeek,
		SlotStart:   slot.StartTime,
		SlotEnd:     slot.EndTime,
		Notes:       req.Notes,
		BookedBy:    tc.UserID,
	}
	key := availability.SlotKey{
		DoctorID:  req.DoctorID,
		DayOfWeek: dayOfWeek,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, appt); err != nil {
			return err
		}
		claimed, err := s.slots.ClaimToken(ctx, key, req.TokenNumber)
		if err != nil {
			return err
		}
		if !claimed {
			return apperr.TokenAlreadyBooked("token was claimed by a concurrent booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Int("token", appt.TokenNumber).
		Msg("appointment booked")
	return appt, nil
}

// Transition moves the appointment to the next lifecycle state. Cancelling
// releases the claimed token in the same transaction as the status update.
func (s *Service) Transition(ctx context.Context, tc tenant.Context, id uuid.UUID, next Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(tc, appt); err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(next) {
		return nil, apperr.Validation("cannot transition appointment from %s to %s", appt.Status, next)
	}

	if next == StatusCancelled {
		// Release targets the slot identity recorded at booking time. The
		// stored timestamp may render in a different zone than the request
		// carried, so the weekday is never re-derived from it.
		key := availability.SlotKey{
			DoctorID:  appt.DoctorID,
			DayOfWeek: appt.DayOfWeek,
			StartTime: appt.SlotStart,
			EndTime:   appt.SlotEnd,
		}
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
				return err
			}
			return s.slots.ReleaseToken(ctx, key, appt.TokenNumber)
		})
	} else {
		err = s.repo.UpdateStatus(ctx, id, next)
	}
	if err != nil {
		return nil, err
	}

	appt.Status = next
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("status", string(next)).
		Msg("appointment status changed")
	return appt, nil
}

// Get returns one appointment if the caller's scope covers it.
func (s *Service) Get(ctx context.Context, tc tenant.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(tc, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// List searches appointments within the caller's scope. Caller-supplied
// filters narrow the result but can never widen it past the scope.
func (s *Service) List(ctx context.Context, tc tenant.Context, filters map[string]string, limit, offset int) ([]*Appointment, int, error) {
	params := tc.ReadFilter(filters)
	if tc.Role == tenant.RoleDoctor {
		params["doctor_id"] = tc.UserID.String()
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// authorize checks the caller's scope against a loaded appointment. For
// doctors the own-user rule binds to the appointment's doctor.
func (s *Service) authorize(tc tenant.Context, appt *Appointment) error {
	var owner *uuid.UUID
	if tc.Role == tenant.RoleDoctor {
		owner = &appt.DoctorID
	}
	return tc.AuthorizeAccess("appointment", &appt.HospitalID, &appt.BranchID, owner)
}
