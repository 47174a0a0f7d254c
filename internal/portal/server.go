// Package portal serves the ToxiTrace web portal: the citizen, doctor and
// EPA login flows and their role-gated dashboards.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/toxitrace/toxitrace/internal/config"
	"github.com/toxitrace/toxitrace/internal/guard"
	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
)

// Backend is the part of the API client the portal uses
type Backend interface {
	ListUserReports(ctx context.Context) ([]models.Report, error)
	SubmitReport(ctx context.Context, req models.SubmitReportRequest) (*models.Report, error)
	ListActiveAlerts(ctx context.Context) ([]models.Alert, error)
	DashboardSummary(ctx context.Context) (models.DashboardSummary, error)
	PatientsFromReports(ctx context.Context) ([]models.PatientInfo, error)
}

// Guard configurations for the protected route groups
var (
	CitizenGuard = guard.Config{}
	DoctorGuard  = guard.Config{
		AllowedRoles: session.PortalDoctor.AllowedRoles(),
		RedirectPath: session.PortalDoctor.LoginRoute(),
	}
	EPAGuard = guard.Config{
		AllowedRoles: session.PortalEPA.AllowedRoles(),
		RedirectPath: session.PortalEPA.LoginRoute(),
	}
)

// Server represents the portal HTTP server
type Server struct {
	router  *gin.Engine
	config  config.PortalConfig
	store   *session.Store
	history *navigation.History
	backend Backend
	logger  zerolog.Logger
	version string
}

// New creates a portal server. history must be the navigator the store was
// built with; handlers read it to learn where login and logout landed.
func New(cfg config.PortalConfig, store *session.Store, history *navigation.History, backend Backend, zlog zerolog.Logger, version string) (*Server, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		store:   store,
		history: history,
		backend: backend,
		logger:  zlog,
		version: version,
	}
	s.setupRouter()
	return s, nil
}

// registerValidators adds the portal's custom binding rules to gin's validator
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("portal", validPortal); err != nil {
		return fmt.Errorf("failed to register portal validator: %w", err)
	}
	return nil
}

func validPortal(fl validator.FieldLevel) bool {
	_, err := session.ParsePortal(fl.Field().String())
	return err == nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)
	s.router.GET(navigation.RouteHome, s.landing)

	// Login pages are the guard redirect targets
	s.router.GET(navigation.RouteLogin, s.loginPage(session.PortalCitizen))
	s.router.GET(navigation.RouteDoctorLogin, s.loginPage(session.PortalDoctor))
	s.router.GET(navigation.RouteEPALogin, s.loginPage(session.PortalEPA))

	s.router.POST("/login", s.login)
	s.router.POST("/register", s.register)
	s.router.POST("/logout", s.logout)
	s.router.GET("/api/session", s.getSession)

	citizen := s.router.Group(navigation.RouteDashboard)
	citizen.Use(GuardMiddleware(s.store, CitizenGuard, s.logger))
	{
		citizen.GET("", s.citizenDashboard)
		citizen.GET("/reports", s.listReports)
		citizen.POST("/reports", s.submitReport)
	}

	doctor := s.router.Group(navigation.RouteDoctorDashboard)
	doctor.Use(GuardMiddleware(s.store, DoctorGuard, s.logger))
	{
		doctor.GET("", s.summary)
		doctor.GET("/patients", s.listPatients)
	}

	epa := s.router.Group(navigation.RouteEPADashboard)
	epa.Use(GuardMiddleware(s.store, EPAGuard, s.logger))
	{
		epa.GET("", s.summary)
		epa.GET("/alerts", s.listAlerts)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "toxitrace-portal",
		"version":   s.version,
	})
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully and closes
// the session store
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("Starting portal server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error().Err(err).Msg("Portal server error")
			s.closeStore()
			return err
		}
	case <-ctx.Done():
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down portal server")
		s.closeStore()
		return err
	}

	s.closeStore()
	s.logger.Info().Msg("Portal shutdown complete")
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing session storage")
	}
}

// wantsJSON is true for API clients, false for browser form posts
func wantsJSON(c *gin.Context) bool {
	if c.ContentType() == binding.MIMEJSON {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), binding.MIMEJSON)
}
