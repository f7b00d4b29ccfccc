package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// healthResponse mirrors what uptime monitors expect: no envelope.
type healthResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	Timestamp   string  `json:"timestamp"`
	Environment string  `json:"environment"`
}

func (s *Server) handleHealth(c echo.Context) error {
	env := s.cfg.Environment
	if env == "" {
		env = "development"
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "OK",
		Uptime:      time.Since(s.started).Seconds(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: env,
	})
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":   "askd",
		"message":   "multi-tenant product answer gateway",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"docs":      s.cfg.APIPrefix + "/docs",
		"health":    s.cfg.APIPrefix + "/health",
	})
}

func (s *Server) handleDocs(c echo.Context) error {
	p := s.cfg.APIPrefix
	return c.JSON(http.StatusOK, map[string]any{
		"message": "API documentation",
		"endpoints": map[string]any{
			"customers": map[string]string{
				"POST " + p + "/customers/register":                   "register a customer",
				"GET " + p + "/customers":                             "list customers",
				"GET " + p + "/customers/:customerId":                 "get a customer",
				"PUT " + p + "/customers/:customerId":                 "update a customer",
				"DELETE " + p + "/customers/:customerId":              "deactivate a customer",
				"GET " + p + "/customers/stats/overview":              "customer statistics",
				"GET " + p + "/customers/:customerId/test-connection": "test the customer datastore",
			},
			"ask": map[string]string{
				"POST " + p + "/ask":      "spoken answer (audio/mpeg) - x-api-key required",
				"POST " + p + "/ask/text": "text answer (JSON) - x-api-key required",
				"GET " + p + "/voices":    "available voices - x-api-key required",
			},
			"apiKeys": map[string]string{
				"GET " + p + "/customers/:customerId/api-key":             "get the active API key",
				"POST " + p + "/customers/:customerId/regenerate-api-key": "rotate the API key",
				"GET " + p + "/customers/api-keys/list":                   "list keys (x-admin-key required)",
			},
		},
	})
}
