package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/apperr"
	"github.com/ForeFoldAi/eye-care-api/internal/platform/auth"
)

type contextKey string

const tenantKey contextKey = "tenant_context"

// Context is the hospital/branch/role scope derived from the caller's
// identity. It is reconstructed per request and never persisted.
type Context struct {
	UserID     uuid.UUID
	Role       Role
	HospitalID *uuid.UUID
	BranchID   *uuid.UUID
}

// Resolve derives a tenant Context from an authenticated identity. It is a
// pure function: the only failure modes are a missing identity and a
// role/scope shape that violates the hierarchy invariants (e.g. an admin
// claim without a hospital).
func Resolve(id auth.Identity) (Context, error) {
	if id.IsZero() {
		return Context{}, apperr.Unauthenticated("no authenticated identity")
	}

	role, err := ParseRole(id.Role)
	if err != nil {
		return Context{}, err
	}

	tc := Context{UserID: id.ID, Role: role}
	if role.ScopedToHospital() {
		if id.HospitalID == nil {
			return Context{}, apperr.Validation("role %s requires a hospital_id", role)
		}
		tc.HospitalID = id.HospitalID
	}
	if role.ScopedToBranch() {
		if id.BranchID == nil {
			return Context{}, apperr.Validation("role %s requires a branch_id", role)
		}
		tc.BranchID = id.BranchID
	}
	return tc, nil
}

// Middleware resolves the tenant context once per request and stores it on
// the request context for handlers and the access filter.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, err := Resolve(auth.IdentityFromContext(c.Request().Context()))
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithContext(c.Request().Context(), tc)))
			return next(c)
		}
	}
}

// WithContext returns a context carrying the tenant context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

// FromContext retrieves the tenant context attached by Middleware.
func FromContext(ctx context.Context) (Context, error) {
	tc, ok := ctx.Value(tenantKey).(Context)
	if !ok {
		return Context{}, apperr.Unauthenticated("no tenant context")
	}
	return tc, nil
}
