// Package api exposes the tree builder over HTTP: the streaming generation
// endpoint plus health and metrics.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seldon-labs/psychohistory/pkg/events"
	"github.com/seldon-labs/psychohistory/pkg/llm"
	"github.com/seldon-labs/psychohistory/pkg/models"
	"github.com/seldon-labs/psychohistory/pkg/tree"
)

// TreeBuilder is the scheduler contract the stream endpoint drives.
// Satisfied by *tree.Builder.
type TreeBuilder interface {
	Build(ctx context.Context, seed models.SeedInput, sink events.Sink) (*models.EventNode, error)
}

// BuilderFunc constructs a fresh builder for one request. Builders own
// per-request tree state and are never reused.
type BuilderFunc func(seed models.SeedInput) TreeBuilder

// Config carries the server's HTTP-level settings.
type Config struct {
	SiteURL string // allowed CORS origin; empty allows any
}

// Server is the API server.
type Server struct {
	newBuilder BuilderFunc
	cfg        Config
	logger     *slog.Logger
	engine     *gin.Engine
}

// NewServer creates the server and registers all routes.
// A nil logger falls back to the default.
func NewServer(newBuilder BuilderFunc, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		newBuilder: newBuilder,
		cfg:        cfg,
		logger:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware(cfg.SiteURL))

	engine.POST("/generate-tree/stream", s.generateTreeStream)
	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = engine
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

// NewBuilderFunc wires the production pipeline: a fresh processor and
// scheduler per request, sharing the given researcher and LLM client.
func NewBuilderFunc(researcher tree.Researcher, client llm.Client, cfg tree.Config, metrics tree.Metrics, logger *slog.Logger) BuilderFunc {
	return func(seed models.SeedInput) TreeBuilder {
		processor := tree.NewNodeProcessor(researcher, client, seed, logger)
		return tree.NewBuilder(processor, cfg, metrics, logger)
	}
}
