// PsychoHistory server — streams branching probability trees of future
// events over HTTP, built from agentic web research and LLM synthesis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seldon-labs/psychohistory/pkg/api"
	"github.com/seldon-labs/psychohistory/pkg/config"
	"github.com/seldon-labs/psychohistory/pkg/llm"
	"github.com/seldon-labs/psychohistory/pkg/metrics"
	"github.com/seldon-labs/psychohistory/pkg/research"
	"github.com/seldon-labs/psychohistory/pkg/search"
	"github.com/seldon-labs/psychohistory/pkg/tree"
	"github.com/seldon-labs/psychohistory/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting PsychoHistory",
		"version", version.Full(),
		"http_port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"search_provider", cfg.SearchProvider,
		"max_depth", cfg.MaxDepth,
		"max_concurrent", cfg.MaxConcurrent)

	// 2. Create LLM client
	llmClient, err := newLLMClient(cfg)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "provider", cfg.LLMProvider)

	// 3. Create search client (rate limiter shared across all pipelines)
	pipelineMetrics := metrics.NewPipeline(nil)
	searchClient := newSearchClient(cfg, pipelineMetrics)
	slog.Info("Search client initialized", "provider", cfg.SearchProvider)

	// 4. Wire the research and tree pipeline
	researcher := research.NewResearcher(llmClient, searchClient, slog.Default())
	newBuilder := api.NewBuilderFunc(researcher, llmClient,
		tree.Config{MaxDepth: cfg.MaxDepth, MaxConcurrent: cfg.MaxConcurrent},
		pipelineMetrics, slog.Default())

	// 5. Create HTTP server
	server := api.NewServer(newBuilder, api.Config{SiteURL: cfg.SiteURL}, slog.Default())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	// 6. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: in-flight streams get shutdownTimeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown timeout exceeded", "error", err)
	}
	slog.Info("PsychoHistory stopped")
}

// newLLMClient builds the configured completion client.
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderAnthropic:
		return llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMModel)
	default:
		return llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModel)
	}
}

// newSearchClient builds the configured search client. The mock provider
// skips rate limiting; real providers share one sliding-window limiter.
func newSearchClient(cfg *config.Config, m search.Metrics) *search.Client {
	var provider search.Provider
	switch cfg.SearchProvider {
	case config.SearchProviderBrave:
		provider = search.NewBraveProvider(cfg.SearchAPIKey)
	case config.SearchProviderSerper:
		provider = search.NewSerperProvider(cfg.SearchAPIKey)
	default:
		return search.NewClient(search.NewMockProvider(),
			search.WithLimiter(nil), search.WithMetrics(m))
	}
	return search.NewClient(provider, search.WithMetrics(m))
}
