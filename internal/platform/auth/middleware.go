package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims is the token payload issued by the credential service. The booking
// API only verifies it; issuance lives elsewhere.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	BranchID   string `json:"branch_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTMiddleware verifies the bearer token and attaches the caller's Identity
// to the request context. Requests without a valid token are rejected with
// 401 before any handler runs.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id, err := identityFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

func identityFromClaims(claims *Claims) (Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}

	id := Identity{ID: userID, Role: claims.Role, Name: claims.Name}
	if claims.HospitalID != "" {
		hid, err := uuid.Parse(claims.HospitalID)
		if err != nil {
			return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid hospital_id claim")
		}
		id.HospitalID = &hid
	}
	if claims.BranchID != "" {
		bid, err := uuid.Parse(claims.BranchID)
		if err != nil {
			return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid branch_id claim")
		}
		id.BranchID = &bid
	}
	return id, nil
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without an Authorization header get a synthetic master admin identity;
// the X-Dev-Role, X-Dev-Hospital and X-Dev-Branch headers override it for
// exercising scoped roles locally.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Identity{
				ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("dev-user")),
				Role: "master_admin",
				Name: "Dev User",
			}
			if role := c.Request().Header.Get("X-Dev-Role"); role != "" {
				id.Role = role
			}
			if h := c.Request().Header.Get("X-Dev-Hospital"); h != "" {
				if hid, err := uuid.Parse(h); err == nil {
					id.HospitalID = &hid
				}
			}
			if b := c.Request().Header.Get("X-Dev-Branch"); b != "" {
				if bid, err := uuid.Parse(b); err == nil {
					id.BranchID = &bid
				}
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}
