package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/db"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/logmon"
	"github.com/mcwarden-project/mcwarden/internal/permission"
	"github.com/mcwarden-project/mcwarden/internal/rcon"
)

// Server is the REST admin API for MCWarden.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus

	session    *rcon.Session
	dispatcher *command.Dispatcher
	bridge     *logmon.Bridge
	gate       *permission.AllowList
	audit      *db.AuditStore

	httpServer *http.Server
	router     *gin.Engine
	started    time.Time
}

// Deps are the runtime components the API exposes. Bridge and audit may
// be nil when those subsystems are disabled.
type Deps struct {
	Session    *rcon.Session
	Dispatcher *command.Dispatcher
	Bridge     *logmon.Bridge
	Gate       *permission.AllowList
	Audit      *db.AuditStore
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, deps Deps) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:        cfg,
		eventBus:   eventBus,
		session:    deps.Session,
		dispatcher: deps.Dispatcher,
		bridge:     deps.Bridge,
		gate:       deps.Gate,
		audit:      deps.Audit,
	}
}

// Start runs the API server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()
	s.started = time.Now()

	addr := fmt.Sprintf(":%d", s.cfg.GetApplicationData().API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	apiCfg := s.cfg.GetApplicationData().API

	allowedOrigins := apiCfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	// ---- Public endpoints (no auth required) ----
	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleVersion)
	}

	// ---- Protected endpoints ----
	protected := router.Group("/api")
	protected.Use(TokenAuth(s.cfg))
	{
		protected.GET("/status", s.handleStatus)
		protected.GET("/players", s.handlePlayers)
		protected.POST("/dispatch", s.handleDispatch)
		protected.POST("/connection/test", s.handleConnectionTest)

		protected.GET("/permissions", s.handleGetPermissions)
		protected.PUT("/permissions/:namespace", s.handleSetPermissions)

		protected.GET("/config", s.handleGetConfig)
		protected.POST("/config/minecraft", s.handleSetMinecraft)

		protected.GET("/audit/commands", s.handleAuditCommands)
		protected.GET("/audit/chat", s.handleAuditChat)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
