package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors shared by the api, settlement and
// outbox processes.
type Metrics struct {
	BetsPlaced              *prometheus.CounterVec
	StakeAccepted           prometheus.Counter
	SettlementRuns          *prometheus.CounterVec
	SettlementBets          *prometheus.CounterVec
	SettlementWinnings      prometheus.Counter
	SettlementDuration      prometheus.Histogram
	SettlementInconsistency prometheus.Counter
	SettlementMatchesFailed prometheus.Counter
	OutboxPublished         prometheus.Counter
	OutboxPublishErrors     prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportsbet_bets_placed_total",
			Help: "Bet placement attempts by outcome.",
		}, []string{"outcome"}),
		StakeAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_stake_accepted_total",
			Help: "Sum of stakes debited by accepted bets.",
		}),
		SettlementRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportsbet_settlement_runs_total",
			Help: "Settlement runs by kind (scan, match, reconcile).",
		}, []string{"kind"}),
		SettlementBets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportsbet_settlement_bets_total",
			Help: "Bets processed by settlement, by item outcome.",
		}, []string{"outcome"}),
		SettlementWinnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_settlement_winnings_total",
			Help: "Sum of winnings credited by settlement.",
		}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sportsbet_settlement_run_duration_seconds",
			Help:    "Duration of settlement runs.",
			Buckets: prometheus.DefBuckets,
		}),
		SettlementInconsistency: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_settlement_inconsistencies_total",
			Help: "Won bets found without a matching win credit.",
		}),
		SettlementMatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_settlement_matches_failed_total",
			Help: "Matches skipped because their bets could not be loaded.",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_outbox_published_total",
			Help: "Outbox events published to Kafka.",
		}),
		OutboxPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportsbet_outbox_publish_errors_total",
			Help: "Outbox events that failed to publish.",
		}),
	}

	reg.MustRegister(
		m.BetsPlaced,
		m.StakeAccepted,
		m.SettlementRuns,
		m.SettlementBets,
		m.SettlementWinnings,
		m.SettlementDuration,
		m.SettlementInconsistency,
		m.SettlementMatchesFailed,
		m.OutboxPublished,
		m.OutboxPublishErrors,
	)
	return m
}

// HealthFunc reports whether a process's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer serves /metrics and /healthz on port for processes that
// have no HTTP API of their own. The caller shuts the server down.
func StartMetricsServer(port int, gatherer prometheus.Gatherer, healthFn HealthFunc) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           MetricsHandler(gatherer, healthFn),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}

// MetricsHandler routes /metrics to gatherer and /healthz to healthFn.
func MetricsHandler(gatherer prometheus.Gatherer, healthFn HealthFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
