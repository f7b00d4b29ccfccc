package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/apierr"
)

// envelope is the uniform success shape: {"success": true, "data": ...}.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

// failure is the uniform error shape: {"success": false, "error": ...}.
type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Path    string `json:"path,omitempty"`
	Method  string `json:"method,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondList(c echo.Context, data any, count int) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

// errorHandler maps errors to the failure envelope. Classified errors
// carry their own HTTP status and message, upstream failures included;
// only unclassified errors get the generic 500 message so internals
// never leak.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	routeMiss := false
	classified := false

	var apiErr *apierr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status()
		message = apiErr.Message
		classified = true
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		routeMiss = status == http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
		if !classified {
			message = "internal server error"
		}
	}

	resp := failure{Success: false, Error: message}
	if routeMiss {
		resp.Error = "not found"
		resp.Path = c.Request().URL.Path
		resp.Method = c.Request().Method
	}

	if writeErr := c.JSON(status, resp); writeErr != nil {
		s.logger.Error(c.Request().Context(), "writing error response failed", zap.Error(writeErr))
	}
}
