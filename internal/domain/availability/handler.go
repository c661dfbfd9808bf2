package availability

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/doctors/:doctorId/availability")

	read := g.Group("", auth.RequireRole("admin", "sub_admin", "doctor", "receptionist"))
	read.GET("", h.ListByDoctor)
	read.GET("/:day", h.GetDay)

	write := g.Group("", auth.RequireRole("admin", "sub_admin"))
	write.PUT("/:day", h.UpsertDay)
	write.DELETE("/:day", h.DeleteDay)
}

type upsertRequest struct {
	HospitalID *uuid.UUID `json:"hospital_id"`
	BranchID   *uuid.UUID `json:"branch_id"`
	IsActive   *bool      `json:"is_active"`
	Slots      []Slot     `json:"slots"`
}

func (h *Handler) UpsertDay(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	doctorID, dayOfWeek, err := pathParams(c)
	if err != nil {
		return err
	}

	var req upsertRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}

	ws := &WeeklySchedule{
		DoctorID:    doctorID,
		DayOfWeek:   dayOfWeek,
		HospitalID:  req.HospitalID,
		BranchID:    req.BranchID,
		IsActive:    true,
		AddedByName: auth.IdentityFromContext(c.Request().Context()).Name,
		Slots:       req.Slots,
	}
	if req.IsActive != nil {
		ws.IsActive = *req.IsActive
	}

	out, err := h.svc.UpsertDay(c.Request().Context(), tc, ws)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDay(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	doctorID, dayOfWeek, err := pathParams(c)
	if err != nil {
		return err
	}

	ws, err := h.svc.GetDay(c.Request().Context(), tc, doctorID, dayOfWeek)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return apperr.Validation("invalid doctor id")
	}

	items, err := h.svc.ListByDoctor(c.Request().Context(), tc, doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteDay(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	doctorID, dayOfWeek, err := pathParams(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteDay(c.Request().Context(), tc, doctorID, dayOfWeek); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func pathParams(c echo.Context) (uuid.UUID, int, error) {
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return uuid.Nil, 0, apperr.Validation("invalid doctor id")
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || day < 0 || day > 6 {
		return uuid.Nil, 0, apperr.Validation("day must be an integer in [0, 6]")
	}
	return doctorID, day, nil
}
