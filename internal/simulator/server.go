package simulator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the simulator settings.
type Config struct {
	// ListenAddress is the host:port to bind.
	ListenAddress string
	// TelescopeName identifies the simulated telescope.
	TelescopeName string
	// SiteLatitude and SiteLongitude locate the observatory in degrees.
	SiteLatitude  float64
	SiteLongitude float64
	// MinAltitude is the lowest observable altitude in degrees.
	MinAltitude float64
	// MaxZenithDistance is the largest accepted angular distance from
	// the zenith in degrees.
	MaxZenithDistance float64
	// Filters and FrameTypes are offered through /api/appinfo/.
	Filters    []string
	FrameTypes []string
	// SessionSecret signs the session cookies.
	SessionSecret string
	// SlewDuration and ExposureOverhead pace the simulated execution.
	SlewDuration     time.Duration
	ExposureOverhead time.Duration
}

// Validate fills defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8800"
	}
	if c.TelescopeName == "" {
		c.TelescopeName = "argus"
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}
	if len(c.Filters) == 0 {
		c.Filters = []string{"R", "G", "B", "UV", "IR"}
	}
	if len(c.FrameTypes) == 0 {
		c.FrameTypes = []string{"Light", "Dark", "Bias", "Flat-Field"}
	}
	if c.MinAltitude == 0 {
		c.MinAltitude = 30
	}
	if c.MaxZenithDistance == 0 {
		c.MaxZenithDistance = 60
	}
	if c.SlewDuration == 0 {
		c.SlewDuration = 2 * time.Second
	}
	if c.ExposureOverhead == 0 {
		c.ExposureOverhead = time.Second
	}
	return nil
}

// Server is the simulated Argus portal.
type Server struct {
	config *Config
	logger *zap.Logger
	store  *store
	router *gin.Engine
	http   *http.Server

	socketMu sync.Mutex
	sockets  map[*socketClient]struct{}
}

// NewServer creates a portal simulator. Start() binds the listener.
func NewServer(config *Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		config:  config,
		logger:  logger.With(zap.String("component", "portal_simulator")),
		store:   newStore(config.TelescopeName),
		sockets: make(map[*socketClient]struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/auth/login/", s.handleLogin)
	router.POST("/api/auth/register/", s.handleRegister)
	router.GET("/api/appinfo/", s.handleAppInfo)

	authed := router.Group("/", s.requireSession)
	authed.GET("/api/fetch_plans/", s.handleFetchPlans)
	authed.GET("/api/fetch_observed", s.handleFetchObserved)
	authed.GET("/api/get_observable_presaved_list/", s.handlePresavedList)
	authed.GET("/ws", s.handleSocket)

	mutating := authed.Group("/", s.requireCSRF)
	mutating.POST("/api/create_plan/", s.handleCreatePlan)
	mutating.POST("/api/delete_plan/", s.handleDeletePlan)
	mutating.POST("/api/check_if_plan_ok/", s.handleCheckPlanOK)
	mutating.POST("/api/execute_plan/", s.handleExecutePlan)
	mutating.POST("/api/request_file/", s.handleRequestFile)

	authed.GET("/api/get_reservations", s.requireAdmin, s.handleGetReservations)
	authed.GET("/api/get_all_users_emails", s.requireAdmin, s.handleGetEmails)
	mutating.POST("/api/reserve_time/", s.requireAdmin, s.handleReserveTime)
	mutating.POST("/api/delete_reservation/", s.requireAdmin, s.handleDeleteReservation)

	s.router = router
	return s, nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Portal simulator listening", zap.String("address", s.config.ListenAddress))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("simulator server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// Seed registers a user directly, for provisioning and tests.
func (s *Server) Seed(email, completeName, password string, admin bool) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.store.addUser(&User{
		ID:           uuid.NewString(),
		Email:        email,
		CompleteName: completeName,
		PasswordHash: hash,
		Admin:        admin,
	})
}
