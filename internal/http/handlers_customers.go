package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/directory"
)

// registerRequest is the body of POST /customers/register.
type registerRequest struct {
	CustomerID   string `json:"customerId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DatastoreURL string `json:"datastoreUrl"`
	DatastoreKey string `json:"datastoreKey"`
}

// registeredCustomer is the tenant plus its freshly issued key. The key
// is shown in this response only.
type registeredCustomer struct {
	directory.Tenant
	APIKey string `json:"apiKey"`
}

func (s *Server) handleRegisterCustomer(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation("invalid request body")
	}

	tenant, apiKey, err := s.directory.Register(c.Request().Context(), directory.RegisterParams{
		CustomerID:          req.CustomerID,
		Name:                req.Name,
		Email:               req.Email,
		DatastoreEndpoint:   req.DatastoreURL,
		DatastoreCredential: req.DatastoreKey,
	})
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "customer registered", registeredCustomer{
		Tenant: *tenant,
		APIKey: apiKey,
	})
}

func (s *Server) handleGetCustomer(c echo.Context) error {
	tenant, err := s.directory.ResolveTenant(c.Request().Context(), c.Param("customerId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", tenant)
}

// updateRequest carries optional fields; absent ones stay untouched.
type updateRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	DatastoreURL *string `json:"datastoreUrl"`
	DatastoreKey *string `json:"datastoreKey"`
	Status       *string `json:"status"`
}

func (s *Server) handleUpdateCustomer(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation("invalid request body")
	}

	upd := directory.TenantUpdate{
		Name:                req.Name,
		Email:               req.Email,
		DatastoreEndpoint:   req.DatastoreURL,
		DatastoreCredential: req.DatastoreKey,
	}
	if req.Status != nil {
		status := directory.Status(*req.Status)
		upd.Status = &status
	}

	tenant, err := s.directory.Update(c.Request().Context(), c.Param("customerId"), upd)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "customer updated", tenant)
}

func (s *Server) handleDeleteCustomer(c echo.Context) error {
	tenant, err := s.directory.Delete(c.Request().Context(), c.Param("customerId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "customer deleted", tenant)
}

func (s *Server) handleListCustomers(c echo.Context) error {
	tenants, err := s.directory.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respondList(c, tenants, len(tenants))
}

func (s *Server) handleCustomerStats(c echo.Context) error {
	stats, err := s.directory.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", stats)
}

// handleTestConnection verifies the customer's datastore answers with
// the stored credential.
func (s *Server) handleTestConnection(c echo.Context) error {
	id := c.Param("customerId")
	if err := s.retriever.TestConnection(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "datastore connection successful", map[string]string{
		"customerId":       id,
		"connectionStatus": "active",
	})
}

func (s *Server) handleGetAPIKey(c echo.Context) error {
	id := c.Param("customerId")
	key, err := s.directory.ActiveKey(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", map[string]string{
		"customerId": id,
		"apiKey":     key.Key,
	})
}

func (s *Server) handleRegenerateAPIKey(c echo.Context) error {
	id := c.Param("customerId")
	key, err := s.directory.RotateKey(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "API key regenerated", map[string]string{
		"customerId": id,
		"apiKey":     key,
	})
}

func (s *Server) handleListAPIKeys(c echo.Context) error {
	keys, err := s.directory.ListKeys(c.Request().Context())
	if err != nil {
		return err
	}
	return respondList(c, keys, len(keys))
}
