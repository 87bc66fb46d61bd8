package app

import (
	"log/slog"

	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/handler"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/ledger"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/attaboy/sportsbet/internal/service"
	"github.com/attaboy/sportsbet/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the database handle the processes need. Satisfied by *pgxpool.Pool.
type Store interface {
	repository.TxBeginner
	infra.Pinger
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Store    Store
	Repos    repository.Set
	Keys     guard.KeyStore
	Clock    guard.Clock
	Config   *infra.Config
	Gatherer prometheus.Gatherer
	Metrics  *infra.Metrics
	Logger   *slog.Logger
}

// NewPlacementService wires the placement service from its parts.
func NewPlacementService(deps RouterDeps) *service.PlacementService {
	return service.NewPlacementService(service.PlacementDeps{
		DB:             deps.Store,
		Engine:         ledger.NewEngine(deps.Repos.Profiles, deps.Repos.Entries),
		Matches:        deps.Repos.Matches,
		Bets:           deps.Repos.Bets,
		Outbox:         deps.Repos.Outbox,
		Limiter:        guard.NewRateLimiter(deps.Config.PlacementRateLimit, deps.Config.PlacementRateWindow, deps.Clock),
		Keys:           deps.Keys,
		IdempotencyTTL: deps.Config.IdempotencyTTL,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
	})
}

// NewSettlementWorker wires a settlement worker over the same store.
func NewSettlementWorker(store repository.TxBeginner, repos repository.Set, cfg *infra.Config, metrics *infra.Metrics, logger *slog.Logger) *settlement.Worker {
	return settlement.NewWorker(settlement.Deps{
		DB:        store,
		Engine:    ledger.NewEngine(repos.Profiles, repos.Entries),
		Matches:   repos.Matches,
		Bets:      repos.Bets,
		Outbox:    repos.Outbox,
		BatchSize: cfg.SettlementBatchSize,
		Metrics:   metrics,
		Logger:    logger,
	})
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	bets := handler.NewBetHandler(NewPlacementService(deps), logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.Config.CORSAllowedOrigins))

	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Store))
		r.Post("/bets", bets.PlaceBet)
	})

	return r
}
