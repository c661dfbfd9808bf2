package apperr

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorHandler renders coded errors as {code, message} JSON bodies.
// Uncoded errors and echo.HTTPErrors with a 5xx status are logged and
// surfaced as a generic internal failure so store details never leak to
// clients.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := errorBody{Code: CodeInternal, Message: "internal server error"}
		status := http.StatusInternalServerError

		if e := From(err); e != nil {
			status = e.Status
			body = errorBody{Code: e.Code, Message: e.Message}
		} else if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			body = errorBody{Code: codeForStatus(he.Code), Message: messageText(he.Message)}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			body = errorBody{Code: CodeInternal, Message: "internal server error"}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			c.Logger().Error(werr)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest:
		return CodeValidation
	default:
		return CodeInternal
	}
}

func messageText(msg interface{}) string {
	if s, ok := msg.(string); ok {
		return s
	}
	return "request failed"
}
