// Package http exposes the orchestrator and the compliance engine over a
// gin router: admin API, GitHub triage webhook, health and metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	webhook    *WebhookHandler
	metrics    http.Handler
	logger     Logger
}

// NewServer wires the router. webhook and metrics may be nil, which leaves
// their routes unregistered.
func NewServer(config ServerConfig, handlers *Handlers, webhook *WebhookHandler, metrics http.Handler, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		webhook:  webhook,
		metrics:  metrics,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
	if s.webhook != nil {
		s.router.POST("/webhooks/github", s.webhook.Handle)
	}

	api := s.router.Group("/api")
	{
		api.POST("/select-role", h.SelectRole)

		// Workflows
		api.POST("/workflows", h.CreateWorkflow)
		api.GET("/workflows", h.ListWorkflows)
		api.GET("/workflows/active", h.ListActiveWorkflows)
		api.GET("/workflows/:id", h.GetWorkflow)
		api.POST("/workflows/:id/run", h.RunWorkflow)
		api.POST("/workflows/:id/cancel", h.CancelWorkflow)

		// Policy store
		api.GET("/roles", h.ListRoles)
		api.POST("/roles", h.RegisterRole)
		api.GET("/roles/:id", h.GetRole)
		api.GET("/roles/:id/knowledge", h.GetKnowledgeForRole)

		api.GET("/rules", h.ListRules)
		api.POST("/rules", h.RegisterRule)
		api.GET("/rules/:id", h.GetRule)

		api.GET("/knowledge", h.ListKnowledge)
		api.POST("/knowledge", h.RegisterKnowledgeEntry)
		api.POST("/knowledge/import", h.ImportKnowledgePDF)
		api.GET("/knowledge/:id", h.GetKnowledgeEntry)

		// Compliance
		api.POST("/assessments", h.Assess)
		api.GET("/assessments", h.ListAssessments)
		api.GET("/assessments/export", h.ExportAssessments)
		api.GET("/assessments/:id", h.GetAssessment)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
