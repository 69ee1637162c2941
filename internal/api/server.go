// Package api exposes the scan ingestion, policy gate, analytics, and
// insight surfaces over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mcpguard/mcpguard/internal/data/db"
	"github.com/mcpguard/mcpguard/internal/log"
	"github.com/mcpguard/mcpguard/internal/metrics"
	"github.com/mcpguard/mcpguard/pkg/insights"
	"github.com/mcpguard/mcpguard/pkg/normalize"
	"github.com/mcpguard/mcpguard/pkg/types"
)

const metricsNamespace = "mcpguard"

// tenantHeader carries the tenant id on every request. Requests
// without it are rejected; data is never served across tenants.
const tenantHeader = "X-Tenant-ID"

// Config carries the server's runtime settings.
type Config struct {
	Addr string `yaml:"addr"`
	// RateLimit is the sustained requests-per-second budget; RateBurst
	// is the bucket size. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Server wires the ingestion pipeline, the store, and the analytics
// surfaces behind one HTTP handler.
type Server struct {
	cfg        Config
	store      db.Store
	normalizer *normalize.Normalizer
	insights   *insights.Service
	logger     types.Logger
	collector  metrics.Collector
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewServer creates a Server. The store, normalizer, and insight
// service must be non-nil.
func NewServer(ctx context.Context, cfg Config, store db.Store, normalizer *normalize.Normalizer, svc *insights.Service) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("insights service cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		cfg:        cfg,
		store:      store,
		normalizer: normalizer,
		insights:   svc,
		logger:     log.NewLogger(ctx),
		collector:  metrics.FromContext(ctx, metricsNamespace),
		now:        time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.registerMetrics(ctx)
	return s, nil
}

func (s *Server) registerMetrics(ctx context.Context) {
	// Registration conflicts only happen when two servers share a
	// collector; the metrics are then already usable.
	_, _ = s.collector.RegisterCounter(ctx, "requests_total", "route", "status") //nolint:errcheck
	_, _ = s.collector.RegisterCounter(ctx, "scans_ingested_total", "scanner")   //nolint:errcheck
	_, _ = s.collector.RegisterCounter(ctx, "gate_results_total", "outcome")     //nolint:errcheck
	_, _ = s.collector.RegisterHistogram(ctx, "request_duration_seconds", "route") //nolint:errcheck
}

// Handler builds the route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /scans", s.handleIngestScan)
	mux.HandleFunc("GET /scans/{id}", s.handleGetScan)
	mux.HandleFunc("GET /scans/{id}/gate", s.handleGateResult)
	mux.HandleFunc("GET /policy", s.handleGetPolicy)
	mux.HandleFunc("PUT /policy", s.handlePutPolicy)
	mux.HandleFunc("GET /findings", s.handleListFindings)
	mux.HandleFunc("POST /findings/{id}/resolve", s.handleResolveFinding)

	mux.HandleFunc("GET /analytics/trends", s.handleTrends)
	mux.HandleFunc("GET /analytics/severity-distribution", s.handleSeverityDistribution)
	mux.HandleFunc("GET /analytics/scanner-effectiveness", s.handleScannerEffectiveness)
	mux.HandleFunc("GET /analytics/remediation-progress", s.handleRemediationProgress)
	mux.HandleFunc("GET /analytics/risk-scores", s.handleRiskScores)
	mux.HandleFunc("GET /analytics/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /ml-insights/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /ml-insights/correlations", s.handleCorrelations)
	mux.HandleFunc("GET /ml-insights/prioritization", s.handlePrioritization)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.collector.MetricsHandler())

	var handler http.Handler = mux
	handler = s.compressMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	return handler
}

// Run serves until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", zap.String("addr", s.cfg.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// tenantID extracts the tenant from the request header.
func tenantID(r *http.Request) string {
	return r.Header.Get(tenantHeader)
}
