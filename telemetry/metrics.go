// Package telemetry exposes pipeline metrics in prometheus format.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names used for the duration histogram.
const (
	StageOracle   = "oracle"
	StageAuthor   = "author"
	StageValidate = "validate"
	StageAck      = "ack"
)

// Metrics owns a private registry so several agents (or tests) never
// collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	Sessions    *prometheus.CounterVec
	Strategies  *prometheus.CounterVec
	Validations *prometheus.CounterVec
	Stages      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masp",
			Name:      "sessions_total",
			Help:      "Deployment sessions by outcome.",
		}, []string{"outcome"}),
		Strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masp",
			Name:      "strategies_total",
			Help:      "Authored strategy candidates by origin.",
		}, []string{"origin"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masp",
			Name:      "validations_total",
			Help:      "Sandbox verdicts.",
		}, []string{"verdict"}),
		Stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masp",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.Sessions,
		m.Strategies,
		m.Validations,
		m.Stages,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.Stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
