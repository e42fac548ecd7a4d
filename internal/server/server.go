// Package server exposes the analysis pipeline and the account endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/auth"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/metrics"
	"github.com/joseph-ayodele/reckon/internal/pipeline"
)

// Analyzer is the pipeline surface the handlers drive.
type Analyzer interface {
	AnalyzeDocuments(ctx context.Context, artifacts []entity.Artifact) ([]pipeline.Outcome[entity.DocumentAnalysis], error)
	AnalyzeSymptoms(ctx context.Context, sub entity.SymptomSubmission) pipeline.Outcome[entity.SymptomAnalysis]
}

type Authenticator interface {
	Signup(ctx context.Context, req auth.SignupRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Verify(token string) (uuid.UUID, error)
}

type AnalysisLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.AnalysisRecord, error)
}

type Exporter interface {
	ExportAnalysesXLSX(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators behind the routes. Analyzer and Auth are
// required; the rest switch their routes off when nil.
type Deps struct {
	Analyzer Analyzer
	Auth     Authenticator
	Analyses AnalysisLister
	Exporter Exporter
	DB       HealthChecker
	Metrics  *metrics.Metrics
}

type Config struct {
	Host      string
	Port      int
	UploadDir string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{echo: e, deps: deps, cfg: cfg, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:        func() string { return uuid.NewString() },
		RequestIDHandler: bindRequestID,
	}))
	e.Use(s.requestLogger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc:  func(string) (bool, error) { return true, nil },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderAccept},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength, echo.HeaderXRequestID},
	}))
	// every file at the cap plus multipart framing
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", constants.MaxUploadFiles*(constants.MaxUploadBytes>>20)+1)))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Route not found"})
	})

	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", s.handleSignup)
	authGroup.POST("/login", s.handleLogin)

	rx := api.Group("/prescription", s.optionalAuth)
	rx.POST("/analyze", s.handleAnalyzeDocuments)
	rx.GET("/file/:filename", s.handleServeUpload)

	api.POST("/symptoms/analyze", s.handleAnalyzeSymptoms, s.optionalAuth)

	if s.deps.Analyses != nil {
		api.GET("/analyses", s.handleListAnalyses, s.requireAuth)
	}
	if s.deps.Exporter != nil {
		api.GET("/analyses/export", s.handleExportAnalyses, s.requireAuth)
	}
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("http.server.start", "addr", addr, "upload_dir", s.cfg.UploadDir)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http.server.shutdown")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "Backend server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Database:  "disconnected",
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(c.Request().Context(), 2*time.Second); err != nil {
			s.logger.Warn("http.health.db_failed", "error", err)
		} else {
			resp.Database = "connected"
		}
	}
	return c.JSON(http.StatusOK, resp)
}
