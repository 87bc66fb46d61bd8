package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/ledger"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Deps wires a Worker.
type Deps struct {
	DB        repository.TxBeginner
	Engine    *ledger.Engine
	Matches   repository.MatchRepository
	Bets      repository.BetRepository
	Outbox    repository.OutboxRepository
	BatchSize int
	Clock     guard.Clock
	Metrics   *infra.Metrics
	Logger    *slog.Logger
}

// Worker settles open bets on finished matches. Each bet settles in its own
// transaction gated on status = 'open', so overlapping runs and retries never
// settle or pay a bet twice.
type Worker struct {
	db        repository.TxBeginner
	engine    *ledger.Engine
	matches   repository.MatchRepository
	bets      repository.BetRepository
	outbox    repository.OutboxRepository
	batchSize int
	clock     guard.Clock
	metrics   *infra.Metrics
	logger    *slog.Logger
}

// NewWorker creates a settlement worker.
func NewWorker(deps Deps) *Worker {
	clock := deps.Clock
	if clock == nil {
		clock = guard.SystemClock{}
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Worker{
		db:        deps.DB,
		engine:    deps.Engine,
		matches:   deps.Matches,
		bets:      deps.Bets,
		outbox:    deps.Outbox,
		batchSize: batch,
		clock:     clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Run settles every finished match that still has open bets, up to the
// batch size. Failures of single matches or bets are recorded in the report
// and do not stop the run; only a failure to list matches returns an error.
func (w *Worker) Run(ctx context.Context) (*Report, error) {
	report := newReport(w.clock.Now())

	var matches []domain.Match
	err := w.read(ctx, func(tx pgx.Tx) error {
		var err error
		matches, err = w.matches.ListFinishedWithOpenBets(ctx, tx, w.batchSize)
		return err
	})
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list finished matches", err)
	}

	for i := range matches {
		if ctx.Err() != nil {
			break
		}
		w.settleMatch(ctx, &matches[i], report)
	}

	w.finish(report, "scan")
	return report, ctx.Err()
}

// SettleMatch settles the open bets of one match. A match that has not
// finished yet produces an empty report.
func (w *Worker) SettleMatch(ctx context.Context, matchID uuid.UUID) (*Report, error) {
	report := newReport(w.clock.Now())

	var match *domain.Match
	err := w.read(ctx, func(tx pgx.Tx) error {
		var err error
		match, err = w.matches.FindByID(ctx, tx, matchID)
		return err
	})
	if err != nil {
		return nil, domain.ErrStoreUnavailable("find match", err)
	}
	if match == nil {
		return nil, domain.ErrMatchNotFound()
	}
	if !match.Finished() {
		w.logger.Debug("match not finished, nothing to settle", "match_id", matchID, "status", match.Status)
		w.finish(report, "match")
		return report, nil
	}

	w.settleMatch(ctx, match, report)
	w.finish(report, "match")
	return report, ctx.Err()
}

func (w *Worker) settleMatch(ctx context.Context, match *domain.Match, report *Report) {
	report.MatchesScanned++

	var bets []domain.Bet
	err := w.read(ctx, func(tx pgx.Tx) error {
		var err error
		bets, err = w.bets.ListOpenByMatch(ctx, tx, match.ID)
		return err
	})
	if err != nil {
		err = domain.ErrStoreUnavailable("list open bets", err)
		report.failMatch(match.ID, err)
		if w.metrics != nil {
			w.metrics.SettlementMatchesFailed.Inc()
		}
		w.logger.Error("failed to load open bets", "match_id", match.ID, "error", err)
		return
	}

	for i := range bets {
		if ctx.Err() != nil {
			return
		}
		item := w.settleBet(ctx, match, &bets[i])
		report.record(item)
		if w.metrics != nil {
			w.metrics.SettlementBets.WithLabelValues(string(item.Outcome)).Inc()
		}
	}
}

func (w *Worker) settleBet(ctx context.Context, match *domain.Match, bet *domain.Bet) ItemResult {
	item := ItemResult{BetID: bet.ID, MatchID: match.ID, UserID: bet.UserID}
	fail := func(err error) ItemResult {
		item.Outcome = OutcomeFailed
		item.Err = err
		w.logger.Error("bet settlement failed", "bet_id", bet.ID, "match_id", match.ID, "error", err)
		return item
	}

	s, err := domain.Settle(bet, match)
	if err != nil {
		return fail(domain.ErrSettlementInconsistency("settle bet", err))
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fail(domain.ErrStoreUnavailable("begin tx", err))
	}
	defer tx.Rollback(ctx)

	settled, ok, err := w.bets.SettleIfOpen(ctx, tx, bet.ID, s)
	if err != nil {
		return fail(domain.ErrStoreUnavailable("settle bet", err))
	}
	if !ok {
		item.Outcome = OutcomeSkipped
		w.logger.Warn("bet already settled, skipping", "bet_id", bet.ID, "match_id", match.ID)
		return item
	}

	if settled.Status == domain.BetWon {
		if _, err := w.engine.CreditWin(ctx, tx, settled); err != nil {
			if domain.IsCode(err, domain.CodeConflict) {
				return fail(domain.ErrSettlementInconsistency(fmt.Sprintf("open bet %s already credited", bet.ID), err))
			}
			return fail(err)
		}
	}

	if err := w.outbox.Insert(ctx, tx, domain.NewBetSettledEvent(settled, s)); err != nil {
		return fail(domain.ErrStoreUnavailable("insert outbox event", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(domain.ErrStoreUnavailable("commit tx", err))
	}

	item.Outcome = OutcomeSettled
	item.Status = settled.Status
	item.Winnings = settled.Winnings
	w.logger.Info("bet settled",
		"bet_id", bet.ID,
		"match_id", match.ID,
		"user_id", bet.UserID,
		"status", settled.Status,
		"winnings", settled.Winnings.String(),
	)
	return item
}

// Reconcile credits won bets that have no win_credit ledger entry. Such rows
// can only come from writes outside the settlement transaction, so each one
// is logged as an inconsistency before it is repaired.
func (w *Worker) Reconcile(ctx context.Context) (*Report, error) {
	report := newReport(w.clock.Now())

	var bets []domain.Bet
	err := w.read(ctx, func(tx pgx.Tx) error {
		var err error
		bets, err = w.bets.ListWonWithoutCredit(ctx, tx, w.batchSize)
		return err
	})
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list uncredited bets", err)
	}

	for i := range bets {
		if ctx.Err() != nil {
			break
		}
		bet := &bets[i]
		if w.metrics != nil {
			w.metrics.SettlementInconsistency.Inc()
		}
		w.logger.Error("won bet without win credit",
			"bet_id", bet.ID,
			"user_id", bet.UserID,
			"winnings", bet.Winnings.String(),
			"error", domain.ErrSettlementInconsistency("missing win credit", nil),
		)

		item := w.repair(ctx, bet)
		report.record(item)
		if w.metrics != nil {
			w.metrics.SettlementBets.WithLabelValues(string(item.Outcome)).Inc()
		}
	}

	w.finish(report, "reconcile")
	return report, ctx.Err()
}

func (w *Worker) repair(ctx context.Context, bet *domain.Bet) ItemResult {
	item := ItemResult{BetID: bet.ID, MatchID: bet.MatchID, UserID: bet.UserID, Status: bet.Status}
	fail := func(err error) ItemResult {
		item.Outcome = OutcomeFailed
		item.Err = err
		w.logger.Error("win credit repair failed", "bet_id", bet.ID, "error", err)
		return item
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fail(domain.ErrStoreUnavailable("begin tx", err))
	}
	defer tx.Rollback(ctx)

	entry, err := w.engine.CreditWin(ctx, tx, bet)
	if err != nil {
		if domain.IsCode(err, domain.CodeConflict) {
			item.Outcome = OutcomeSkipped
			return item
		}
		return fail(err)
	}

	if err := w.outbox.Insert(ctx, tx, domain.NewSettlementRepairedEvent(bet, entry)); err != nil {
		return fail(domain.ErrStoreUnavailable("insert outbox event", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(domain.ErrStoreUnavailable("commit tx", err))
	}

	item.Outcome = OutcomeRepaired
	item.Winnings = bet.Winnings
	w.logger.Info("win credit repaired", "bet_id", bet.ID, "user_id", bet.UserID, "winnings", bet.Winnings.String())
	return item
}

// read runs fn in a short transaction that is always rolled back.
func (w *Worker) read(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

func (w *Worker) finish(report *Report, kind string) {
	report.FinishedAt = w.clock.Now()
	if w.metrics == nil {
		return
	}
	w.metrics.SettlementRuns.WithLabelValues(kind).Inc()
	w.metrics.SettlementDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	f, _ := report.TotalWinnings.Add(report.TotalRepaired).Float64()
	w.metrics.SettlementWinnings.Add(f)
}
