// Package http exposes Prometheus metrics and health endpoints during
// long pipeline runs. The server is optional; plain invocations never
// start it.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shazamtool/internal/core"
)

// Server serves /metrics, /healthz and /readyz and implements
// core.MetricsSink for the pipeline.
type Server struct {
	config  *core.MetricsConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

type Metrics struct {
	ChunksTotal       *prometheus.CounterVec
	RecognitionsTotal *prometheus.CounterVec
	RetriesTotal      prometheus.Counter
	CacheHitsTotal    prometheus.Counter
	ReportsTotal      prometheus.Counter
	StageDuration     *prometheus.HistogramVec
}

func NewServer(config *core.MetricsConfig, logger *zap.Logger) *Server {
	metrics := &Metrics{
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shazamtool_chunks_total",
				Help: "Total number of chunks processed",
			},
			[]string{"status"},
		),
		RecognitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shazamtool_recognitions_total",
				Help: "Total number of recognition outcomes",
			},
			[]string{"provider", "status"},
		),
		RetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shazamtool_recognition_retries_total",
				Help: "Total number of recognition retry attempts",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shazamtool_cache_hits_total",
				Help: "Total number of recognition cache hits",
			},
		),
		ReportsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shazamtool_reports_total",
				Help: "Total number of report files written",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shazamtool_stage_duration_seconds",
				Help:    "Time spent in pipeline stages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.ChunksTotal,
		metrics.RecognitionsTotal,
		metrics.RetriesTotal,
		metrics.CacheHitsTotal,
		metrics.ReportsTotal,
		metrics.StageDuration,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"shazamtool"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"shazamtool"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting metrics server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Debug("Shutting down metrics server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown metrics server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	return nil
}

func (s *Server) RecordChunk(status string) {
	s.metrics.ChunksTotal.WithLabelValues(status).Inc()
}

func (s *Server) RecordRecognition(provider, status string) {
	s.metrics.RecognitionsTotal.WithLabelValues(provider, status).Inc()
}

func (s *Server) RecordRetry() {
	s.metrics.RetriesTotal.Inc()
}

func (s *Server) RecordCacheHit() {
	s.metrics.CacheHitsTotal.Inc()
}

func (s *Server) RecordReport() {
	s.metrics.ReportsTotal.Inc()
}

func (s *Server) ObserveStage(stage string, d time.Duration) {
	s.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
