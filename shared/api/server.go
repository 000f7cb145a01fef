package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trend-digest/internal/models"
	"trend-digest/shared/logging"
	"trend-digest/shared/monitoring"
	"trend-digest/shared/scheduler"
)

const (
	MaxBatchSize    = 50
	shutdownTimeout = 30 * time.Second
)

type Pipeline interface {
	Discover(ctx context.Context) (models.DiscoverReport, error)
	ProcessAndPost(ctx context.Context, batchSize int) (models.ProcessReport, error)
}

// Runner serialises pipeline operations; see scheduler.Scheduler.Exclusive.
type Runner interface {
	Exclusive(ctx context.Context, operation string, fn func(ctx context.Context) (scheduler.Report, error)) (scheduler.Report, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

type Server struct {
	pipeline         Pipeline
	runner           Runner
	stats            StatsSource
	health           *monitoring.HealthChecker
	monitor          *monitoring.Monitor
	metrics          *monitoring.Metrics
	defaultBatchSize int
	log              *zap.Logger
	engine           *gin.Engine
}

type Deps struct {
	Pipeline         Pipeline
	Runner           Runner
	Stats            StatsSource
	Health           *monitoring.HealthChecker
	Monitor          *monitoring.Monitor
	Metrics          *monitoring.Metrics
	DefaultBatchSize int
}

func NewServer(deps Deps, log *zap.Logger) *Server {
	s := &Server{
		pipeline:         deps.Pipeline,
		runner:           deps.Runner,
		stats:            deps.Stats,
		health:           deps.Health,
		monitor:          deps.Monitor,
		metrics:          deps.Metrics,
		defaultBatchSize: deps.DefaultBatchSize,
		log:              logging.OrNop(log),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.handleHealth)
	engine.GET("/status", s.handleStatus)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := engine.Group("/api")
	api.POST("/discover", s.handleDiscover)
	api.POST("/process", s.handleProcess)
	api.GET("/stats", s.handleStats)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.log.Info("http server stopped")
		return nil
	}
}

func (s *Server) handleDiscover(c *gin.Context) {
	report, err := s.runner.Exclusive(c.Request.Context(), "discover", func(ctx context.Context) (scheduler.Report, error) {
		return s.pipeline.Discover(ctx)
	})
	s.respondRun(c, "discover", report, err)
}

type processRequest struct {
	BatchSize *int `json:"batch_size"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "details": err.Error()})
		return
	}

	batchSize := s.defaultBatchSize
	if req.BatchSize != nil {
		batchSize = *req.BatchSize
	}
	if batchSize < 1 || batchSize > MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid batch_size",
			"details": fmt.Sprintf("batch_size must be between 1 and %d", MaxBatchSize),
		})
		return
	}

	report, err := s.runner.Exclusive(c.Request.Context(), "process", func(ctx context.Context) (scheduler.Report, error) {
		return s.pipeline.ProcessAndPost(ctx, batchSize)
	})
	s.respondRun(c, "process", report, err)
}

func (s *Server) respondRun(c *gin.Context, operation string, report scheduler.Report, err error) {
	if err == nil {
		c.JSON(http.StatusOK, report)
		return
	}

	status := http.StatusInternalServerError
	if errors.Is(err, scheduler.ErrBusy) {
		status = http.StatusConflict
	}

	var runErr *models.RunError
	if !errors.As(err, &runErr) {
		runErr = models.NewRunError(operation, err)
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   runErr.Op + " failed",
		"details": runErr.Details,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.stats.Stats(c.Request.Context())
	if err != nil {
		s.log.Error("failed to load dashboard stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "stats failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"summary": s.monitor.GetStatusSummary(),
		"healthy": s.monitor.IsHealthy(),
		"runs":    s.monitor.Runs(),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
