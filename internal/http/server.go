// Package http exposes the answer gateway's REST API.
package http

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/ask"
	"github.com/fyrsmithlabs/askd/internal/directory"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/ratelimit"
	"github.com/fyrsmithlabs/askd/internal/retriever"
	"github.com/fyrsmithlabs/askd/internal/speech"
)

// Config holds HTTP server configuration.
type Config struct {
	Port          int
	APIPrefix     string
	AllowedOrigin string
	Environment   string
	AdminKey      string
}

// Deps are the services the API fronts.
type Deps struct {
	Directory  *directory.Directory
	Ask        *ask.Service
	Retriever  *retriever.Retriever
	Synth      speech.Synthesizer
	AudioLimit ratelimit.Limiter
	TextLimit  ratelimit.Limiter
	Logger     *logging.Logger
}

// Server is the gateway's HTTP front.
type Server struct {
	echo      *echo.Echo
	directory *directory.Directory
	ask       *ask.Service
	retriever *retriever.Retriever
	synth     speech.Synthesizer
	audio     ratelimit.Limiter
	text      ratelimit.Limiter
	logger    *logging.Logger
	cfg       Config
	started   time.Time
}

// NewServer creates the server and registers all routes.
func NewServer(deps Deps, cfg Config) (*Server, error) {
	if deps.Directory == nil || deps.Ask == nil || deps.Retriever == nil {
		return nil, fmt.Errorf("directory, ask, and retriever services are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Port <= 0 {
		cfg.Port = 3000
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		directory: deps.Directory,
		ask:       deps.Ask,
		retriever: deps.Retriever,
		synth:     deps.Synth,
		audio:     deps.AudioLimit,
		text:      deps.TextLimit,
		logger:    deps.Logger.Named("http"),
		cfg:       cfg,
		started:   time.Now(),
	}

	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.AllowedOrigin},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderContentType, headerAPIKey, headerAdminKey},
	}))
	e.Use(s.requestContext)
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group(s.cfg.APIPrefix)
	api.GET("/health", s.handleHealth)
	api.GET("/docs", s.handleDocs)

	customers := api.Group("/customers")
	customers.POST("/register", s.handleRegisterCustomer)
	customers.GET("", s.handleListCustomers)
	customers.GET("/stats/overview", s.handleCustomerStats)
	customers.GET("/api-keys/list", s.handleListAPIKeys, s.requireAdmin)
	customers.GET("/:customerId", s.handleGetCustomer)
	customers.PUT("/:customerId", s.handleUpdateCustomer)
	customers.DELETE("/:customerId", s.handleDeleteCustomer)
	customers.GET("/:customerId/test-connection", s.handleTestConnection)
	customers.GET("/:customerId/api-key", s.handleGetAPIKey)
	customers.POST("/:customerId/regenerate-api-key", s.handleRegenerateAPIKey)

	asking := api.Group("", s.authenticate)
	asking.POST("/ask", s.handleAsk, s.limit(s.audio, "audio"))
	asking.POST("/ask/text", s.handleAskText, s.limit(s.text, "text"))
	asking.GET("/voices", s.handleVoices)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info(context.Background(), "starting http server",
		zap.String("addr", addr), zap.String("prefix", s.cfg.APIPrefix))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
