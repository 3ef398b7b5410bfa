// Package metrics holds the prometheus collectors shared by the cascade and
// the cache store, and serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Stage outcomes
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

var (
	VerifyStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "citecheck",
		Subsystem: "verify",
		Name:      "stage_total",
		Help:      "Cascade stage attempts by stage and outcome (hit, miss, error)",
	}, []string{"stage", "outcome"})

	VerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "citecheck",
		Subsystem: "verify",
		Name:      "duration_seconds",
		Help:      "Time to verify one citation through the whole cascade",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "citecheck",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups answered, by the tier that answered",
	}, []string{"tier"})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "citecheck",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups no tier could answer",
	})

	CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "citecheck",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Cache tier failures by tier and operation",
	}, []string{"tier", "op"})

	CitationsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "citecheck",
		Subsystem: "pipeline",
		Name:      "citations_extracted_total",
		Help:      "Citations found across all processed documents",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
