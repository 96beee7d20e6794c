// Package web serves the visualizer page and its JSON/websocket API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"stepviz/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

// Analyzer is what the handlers need from trace.Analyzer.
type Analyzer interface {
	AnalyzeLocally(ctx context.Context, source string, lang model.Language, stdin string) model.SimulationResponse
	Run(ctx context.Context, source string, lang model.Language, stdin string) (model.RunResult, error)
}

// Server is the stepviz HTTP server.
type Server struct {
	analyzer Analyzer
	logger   *slog.Logger
	router   *gin.Engine
	index    []byte
}

// NewServer builds the router. Set gin's mode before calling.
func NewServer(a Analyzer, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	index, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	s := &Server{
		analyzer: a,
		logger:   logger.With("component", "web"),
		router:   gin.New(),
		index:    index,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}

	r := s.router
	r.Use(gin.Recovery(), otelgin.Middleware("stepviz"), s.requestID(), s.accessLog())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", s.index)
	})
	r.StaticFS("/static", http.FS(sub))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/visualize", s.handleVisualize)
	api.GET("/visualize/stream", s.handleVisualizeStream)
	api.POST("/run", s.handleRun)
	api.POST("/flowchart", s.handleFlowchart)
	api.POST("/line-context", s.handleLineContext)
	api.GET("/help", s.handleHelp)
	api.GET("/health", s.handleHealth)
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestID tags each request with X-Request-ID, minting one if absent.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
