// Package metrics exposes Prometheus counters for the poll pipeline, media
// saving and event routing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Events       *prometheus.CounterVec
	VotesApplied prometheus.Counter
	VotesSkipped *prometheus.CounterVec
	Merges       *prometheus.CounterVec
	StorageErrs  prometheus.Counter
	Media        *prometheus.CounterVec
	MergeLatency prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "events_total",
			Help:      "WhatsApp events seen by the router, by kind.",
		}, []string{"kind"}),
		VotesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "votes_applied_total",
			Help:      "Decrypted poll votes merged into a poll record.",
		}),
		VotesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "votes_skipped_total",
			Help:      "Poll updates dropped without a store mutation, by reason.",
		}, []string{"reason"}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "merges_total",
			Help:      "Poll merges, by outcome.",
		}, []string{"outcome"}),
		StorageErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "storage_errors_total",
			Help:      "Storage failures that survived all retries.",
		}),
		Media: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pollwatch",
			Name:      "media_total",
			Help:      "Media attachments processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		MergeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pollwatch",
			Name:      "poll_update_seconds",
			Help:      "Time spent handling one poll update end to end.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Events, m.VotesApplied, m.VotesSkipped, m.Merges, m.StorageErrs, m.Media, m.MergeLatency)
	return m
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) VoteApplied() {
	if m == nil {
		return
	}
	m.VotesApplied.Inc()
}

func (m *Metrics) VoteSkipped(reason string) {
	if m == nil {
		return
	}
	m.VotesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Merge(outcome string) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StorageError() {
	if m == nil {
		return
	}
	m.StorageErrs.Inc()
}

func (m *Metrics) MediaResult(kind, outcome string) {
	if m == nil {
		return
	}
	m.Media.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObservePollUpdate(start time.Time) {
	if m == nil {
		return
	}
	m.MergeLatency.Observe(time.Since(start).Seconds())
}

// Server serves /metrics over HTTP.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(address string, g prometheus.Gatherer, l logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{address: address, handler: mux, logger: l.With("module", "metrics_server")}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping metrics server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting metrics server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
