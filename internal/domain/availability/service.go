package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// UpsertDay replaces a doctor's schedule for one weekday. Only admins and
// sub admins manage schedules, always within their own hospital/branch; the
// off day is immutable for everyone.
func (s *Service) UpsertDay(ctx context.Context, tc tenant.Context, ws *WeeklySchedule) (*WeeklySchedule, error) {
	if tc.Role != tenant.RoleMasterAdmin && tc.Role != tenant.RoleAdmin && tc.Role != tenant.RoleSubAdmin {
		return nil, apperr.PermissionDenied("role %s cannot manage availability", tc.Role)
	}
	if ws.DayOfWeek == OffDay {
		return nil, apperr.Validation("day_of_week 0 is the off day and cannot be scheduled")
	}

	scoped := tenant.ScopedRecord{HospitalID: ws.HospitalID, BranchID: ws.BranchID}
	if err := tc.AuthorizeCreation(&scoped); err != nil {
		return nil, err
	}
	ws.HospitalID = scoped.HospitalID
	ws.BranchID = scoped.BranchID

	if err := ws.Validate(); err != nil {
		return nil, err
	}

	// Caller-supplied claims are discarded; booked state is owned by the
	// booking engine. The repository re-seeds each slot from the persisted
	// row when its time bounds survive the replace.
	for i := range ws.Slots {
		ws.Slots[i].BookedTokens = []int{}
	}

	ws.AddedByUserID = tc.UserID
	ws.AddedByRole = string(tc.Role)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.UpsertDay(ctx, ws)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Service) GetDay(ctx context.Context, tc tenant.Context, doctorID uuid.UUID, dayOfWeek int) (*WeeklySchedule, error) {
	ws, err := s.repo.GetDay(ctx, doctorID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	if err := tc.AuthorizeAccess("availability", ws.HospitalID, ws.BranchID, nil); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Service) ListByDoctor(ctx context.Context, tc tenant.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error) {
	items, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	for _, ws := range items {
		if err := tc.AuthorizeAccess("availability", ws.HospitalID, ws.BranchID, nil); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *Service) DeleteDay(ctx context.Context, tc tenant.Context, doctorID uuid.UUID, dayOfWeek int) error {
	if tc.Role != tenant.RoleMasterAdmin && tc.Role != tenant.RoleAdmin && tc.Role != tenant.RoleSubAdmin {
		return apperr.PermissionDenied("role %s cannot manage availability", tc.Role)
	}
	if dayOfWeek == OffDay {
		return apperr.Validation("day_of_week 0 is the off day and has no schedule")
	}

	ws, err := s.repo.GetDay(ctx, doctorID, dayOfWeek)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeAccess("availability", ws.HospitalID, ws.BranchID, nil); err != nil {
		return err
	}
	return s.repo.DeleteDay(ctx, doctorID, dayOfWeek)
}
