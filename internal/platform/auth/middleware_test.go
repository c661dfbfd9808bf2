package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims Claims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() Claims {
	hid := uuid.New()
	bid := uuid.New()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:       "receptionist",
		HospitalID: hid.String(),
		BranchID:   bid.String(),
		Name:       "Front Desk",
	}
}

// echoIdentity runs the middleware chain and captures the identity the
// handler observes.
func echoIdentity(mw echo.MiddlewareFunc, req *http.Request) (Identity, *httptest.ResponseRecorder) {
	e := echo.New()
	var got Identity
	e.GET("/", func(c echo.Context) error {
		got = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}, mw)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return got, rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := validClaims()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))

	id, rec := echoIdentity(JWTMiddleware(JWTConfig{Secret: testSecret}), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if id.Role != "receptionist" || id.ID.String() != claims.Subject {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.HospitalID == nil || id.HospitalID.String() != claims.HospitalID {
		t.Fatal("hospital_id claim must be carried onto the identity")
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	badSubject := validClaims()
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.token"},
		{name: "wrong secret", header: "Bearer " + signToken(t, validClaims(), []byte("other"))},
		{name: "expired", header: "Bearer " + signToken(t, expired, testSecret)},
		{name: "invalid subject", header: "Bearer " + signToken(t, badSubject, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, rec := echoIdentity(JWTMiddleware(JWTConfig{Secret: testSecret}), req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestJWTMiddleware_IssuerAudience(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "https://auth.example.com"
	claims.Audience = jwt.ClaimStrings{"booking-api"}

	cfg := JWTConfig{Secret: testSecret, Issuer: "https://auth.example.com", Audience: "booking-api"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))
	_, rec := echoIdentity(JWTMiddleware(cfg), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	wrong := validClaims()
	wrong.Issuer = "https://evil.example.com"
	wrong.Audience = jwt.ClaimStrings{"booking-api"}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, wrong, testSecret))
	_, rec = echoIdentity(JWTMiddleware(cfg), req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong issuer must 401, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id, rec := echoIdentity(DevAuthMiddleware(), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if id.Role != "master_admin" {
		t.Fatalf("expected master_admin default, got %s", id.Role)
	}

	hid := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-Role", "admin")
	req.Header.Set("X-Dev-Hospital", hid.String())
	id, _ = echoIdentity(DevAuthMiddleware(), req)
	if id.Role != "admin" || id.HospitalID == nil || *id.HospitalID != hid {
		t.Fatalf("dev headers must override identity, got %+v", id)
	}
}

func TestRequireRole(t *testing.T) {
	call := func(role string, allowed ...string) int {
		e := echo.New()
		e.GET("/", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}, func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if role != "" {
					id := Identity{ID: uuid.New(), Role: role}
					c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
				}
				return next(c)
			}
		}, RequireRole(allowed...))

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec.Code
	}

	if got := call("admin", "admin", "sub_admin"); got != http.StatusOK {
		t.Fatalf("allowed role: expected 200, got %d", got)
	}
	if got := call("doctor", "admin"); got != http.StatusForbidden {
		t.Fatalf("disallowed role: expected 403, got %d", got)
	}
	if got := call("master_admin", "admin"); got != http.StatusOK {
		t.Fatalf("master admin bypass: expected 200, got %d", got)
	}
	if got := call("", "admin"); got != http.StatusUnauthorized {
		t.Fatalf("missing identity: expected 401, got %d", got)
	}
}
