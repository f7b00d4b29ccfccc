package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/ratelimit"
)

const (
	headerAPIKey   = "x-api-key"
	headerAdminKey = "x-admin-key"
	headerMetadata = "X-Response-Metadata"

	customerContextKey = "customerID"
)

// requestContext threads the request ID into the request context so
// downstream log lines carry it.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), requestID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requestLogger emits one line per request and feeds the HTTP metrics.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start)

		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		status := c.Response().Status
		if err != nil && !c.Response().Committed {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else {
				status = apierr.StatusOf(err)
			}
		}

		RequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(c.Request().Method, path).Observe(duration.Seconds())

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)
		return err
	}
}

// authenticate resolves the x-api-key header to a customer. The customer
// ID lands in both the echo context and the request context.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(headerAPIKey)
		if key == "" {
			return apierr.Auth("API key required: %s header is missing", headerAPIKey)
		}

		customerID, err := s.directory.CustomerForKey(c.Request().Context(), key)
		if err != nil {
			return err
		}

		c.Set(customerContextKey, customerID)
		ctx := logging.WithCustomer(c.Request().Context(), customerID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requireAdmin guards operator endpoints with the x-admin-key header.
// With no admin key configured the endpoints stay closed.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.AdminKey == "" {
			return apierr.Auth("admin access is not configured")
		}
		if c.Request().Header.Get(headerAdminKey) != s.cfg.AdminKey {
			return apierr.Auth("admin key required")
		}
		return next(c)
	}
}

// limit enforces the per-customer ceiling for one endpoint scope.
// Unauthenticated callers are keyed by client IP.
func (s *Server) limit(limiter ratelimit.Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			key := customerID(c)
			if key == "" {
				key = c.RealIP()
			}

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				return apierr.Internal(err, "rate limit check failed")
			}
			if !allowed {
				RateLimitRejections.WithLabelValues(scope).Inc()
				s.logger.Warn(c.Request().Context(), "rate limit exceeded",
					zap.String("scope", scope), zap.String("path", c.Request().URL.Path))
				return apierr.RateLimited("rate limit exceeded")
			}
			return next(c)
		}
	}
}

func customerID(c echo.Context) string {
	id, _ := c.Get(customerContextKey).(string)
	return id
}
