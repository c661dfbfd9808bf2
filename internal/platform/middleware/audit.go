package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ForeFoldAi/eye-care-api/internal/platform/auth"
)

// Audit emits one structured line per mutating request against booking
// resources, recording who acted on what and whether the store accepted it.
// Reads are covered by the request logger; the audit trail only needs writes.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isAuditable(c.Request().Method, c.Request().URL.Path) {
				return next(c)
			}

			err := next(c)

			id := auth.IdentityFromContext(c.Request().Context())
			evt := logger.Info()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			evt = evt.
				Str("actor", id.ID.String()).
				Str("role", id.Role).
				Str("action", c.Request().Method).
				Str("resource", c.Request().URL.Path).
				Int("status", c.Response().Status)
			if id.HospitalID != nil {
				evt = evt.Str("hospital_id", id.HospitalID.String())
			}
			if id.BranchID != nil {
				evt = evt.Str("branch_id", id.BranchID.String())
			}
			evt.Msg("audit")

			return err
		}
	}
}

func isAuditable(method, path string) bool {
	switch method {
	case echo.GET, echo.HEAD, echo.OPTIONS:
		return false
	}
	return strings.Contains(path, "/appointments") || strings.Contains(path, "/availability")
}
