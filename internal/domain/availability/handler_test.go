package availability

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ForeFoldAi/eye-care-api/internal/domain/tenant"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/auth"
)

func newTestServer(repo Repository, id auth.Identity) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	})

	api := e.Group("/api/v1")
	api.Use(tenant.Middleware())
	NewHandler(NewService(repo, passTx{})).RegisterRoutes(api)
	return e
}

func adminIdentity() auth.Identity {
	return auth.Identity{
		ID:         uuid.New(),
		Role:       "sub_admin",
		HospitalID: &testHospital,
		BranchID:   &testBranch,
		Name:       "Branch Admin",
	}
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const upsertBody = `{
	"slots": [
		{"start_time": "09:00", "end_time": "12:00", "hours_available": 3, "token_count": 10}
	]
}`

func TestHandler_UpsertDay(t *testing.T) {
	repo := newMockRepo()
	e := newTestServer(repo, adminIdentity())
	doctorID := uuid.New()

	path := fmt.Sprintf("/api/v1/doctors/%s/availability/1", doctorID)
	rec := do(e, http.MethodPut, path, upsertBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var ws WeeklySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &ws); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ws.AddedByName != "Branch Admin" {
		t.Fatalf("expected added_by_name from identity, got %q", ws.AddedByName)
	}
	if len(ws.Slots) != 1 || ws.Slots[0].TokenCount != 10 {
		t.Fatalf("unexpected schedule: %+v", ws)
	}
}

func TestHandler_UpsertSundayRejected(t *testing.T) {
	e := newTestServer(newMockRepo(), adminIdentity())
	doctorID := uuid.New()

	path := fmt.Sprintf("/api/v1/doctors/%s/availability/0", doctorID)
	rec := do(e, http.MethodPut, path, upsertBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("day 0 upsert must 400, got %d", rec.Code)
	}

	rec = do(e, http.MethodDelete, path, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("day 0 delete must 400, got %d", rec.Code)
	}
}

func TestHandler_WriteRoleGate(t *testing.T) {
	id := adminIdentity()
	id.Role = "receptionist"
	e := newTestServer(newMockRepo(), id)
	doctorID := uuid.New()

	path := fmt.Sprintf("/api/v1/doctors/%s/availability/1", doctorID)
	if rec := do(e, http.MethodPut, path, upsertBody); rec.Code != http.StatusForbidden {
		t.Fatalf("receptionist upsert must 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, path, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("receptionist delete must 403, got %d", rec.Code)
	}
}

func TestHandler_GetDay(t *testing.T) {
	repo := newMockRepo()
	e := newTestServer(repo, adminIdentity())
	doctorID := uuid.New()

	path := fmt.Sprintf("/api/v1/doctors/%s/availability/2", doctorID)
	if rec := do(e, http.MethodPut, path, upsertBody); rec.Code != http.StatusOK {
		t.Fatalf("seed upsert failed: %d", rec.Code)
	}

	rec := do(e, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/availability/5", doctorID), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing day must 404, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/availability/9", doctorID), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("day out of range must 400, got %d", rec.Code)
	}
}
