package appointment

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/auth"
	"github.com/ForeFoldAi/eye-care-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")

	g.POST("", h.Book, auth.RequireRole("receptionist"))

	read := g.Group("", auth.RequireRole("admin", "sub_admin", "doctor", "receptionist"))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.PATCH("/:id/status", h.UpdateStatus)
}

type bookRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	Datetime    string     `json:"datetime"`
	Type        string     `json:"type"`
	TokenNumber int        `json:"token_number"`
	Notes       *string    `json:"notes"`
	HospitalID  *uuid.UUID `json:"hospital_id"`
	BranchID    *uuid.UUID `json:"branch_id"`
}

func (h *Handler) Book(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	startsAt, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		return apperr.Validation("datetime must be RFC 3339")
	}

	appt, err := h.svc.Book(c.Request().Context(), tc, BookingRequest{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		StartsAt:    startsAt,
		Type:        req.Type,
		TokenNumber: req.TokenNumber,
		Notes:       req.Notes,
		HospitalID:  req.HospitalID,
		BranchID:    req.BranchID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid appointment id")
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	next, err := ParseStatus(req.Status)
	if err != nil {
		return err
	}

	appt, err := h.svc.Transition(c.Request().Context(), tc, id, next)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Get(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid appointment id")
	}

	appt, err := h.svc.Get(c.Request().Context(), tc, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) List(c echo.Context) error {
	tc, err := tenant.FromContext(c.Request().Context())
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)

	filters := map[string]string{}
	for _, key := range []string{"doctor_id", "patient_id", "status", "date"} {
		if v := c.QueryParam(key); v != "" {
			filters[key] = v
		}
	}

	items, total, err := h.svc.List(c.Request().Context(), tc, filters, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}
