package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/ledger"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlacementDeps wires a PlacementService.
type PlacementDeps struct {
	DB             repository.TxBeginner
	Engine         *ledger.Engine
	Matches        repository.MatchRepository
	Bets           repository.BetRepository
	Outbox         repository.OutboxRepository
	Limiter        *guard.RateLimiter
	Keys           guard.KeyStore
	IdempotencyTTL time.Duration
	Metrics        *infra.Metrics
	Logger         *slog.Logger
}

// PlacementService accepts bets. The balance check and the debit are one
// conditional statement inside the placement transaction.
type PlacementService struct {
	db             repository.TxBeginner
	engine         *ledger.Engine
	matches        repository.MatchRepository
	bets           repository.BetRepository
	outbox         repository.OutboxRepository
	limiter        *guard.RateLimiter
	keys           guard.KeyStore
	idempotencyTTL time.Duration
	metrics        *infra.Metrics
	logger         *slog.Logger
}

// NewPlacementService creates a PlacementService.
func NewPlacementService(deps PlacementDeps) *PlacementService {
	return &PlacementService{
		db:             deps.DB,
		engine:         deps.Engine,
		matches:        deps.Matches,
		bets:           deps.Bets,
		outbox:         deps.Outbox,
		limiter:        deps.Limiter,
		keys:           deps.Keys,
		idempotencyTTL: deps.IdempotencyTTL,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
	}
}

// PlaceBetInput holds the bet placement request.
type PlaceBetInput struct {
	UserID         uuid.UUID
	MatchID        uuid.UUID
	Stake          decimal.Decimal
	Odds           decimal.Decimal
	Selection      string
	IdempotencyKey string
}

// PlaceBetResult holds the placed bet. Replayed is true when the bet was
// created by an earlier request with the same idempotency key.
type PlaceBetResult struct {
	Bet      *domain.Bet
	Replayed bool
}

// PlaceBet validates the request, debits the stake and records an open bet,
// all in one transaction. Either every effect is committed or none is.
func (s *PlacementService) PlaceBet(ctx context.Context, input PlaceBetInput) (*PlaceBetResult, error) {
	result, err := s.placeBet(ctx, input)
	s.observe(input, result, err)
	return result, err
}

func (s *PlacementService) placeBet(ctx context.Context, input PlaceBetInput) (*PlaceBetResult, error) {
	selection, err := validatePlacement(input)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if res := s.limiter.Check(ctx, input.UserID.String()); !res.Allowed {
			return nil, domain.ErrRateLimited("Too many bets, slow down")
		}
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" && s.keys != nil {
		reservation := input.UserID.String() + ":" + key
		ok, err := s.keys.Reserve(ctx, reservation, s.idempotencyTTL)
		switch {
		case err != nil:
			// The unique index on (user_id, idempotency_key) still holds.
			s.logger.Warn("idempotency key store unavailable", "user_id", input.UserID, "error", err)
		case !ok:
			return nil, domain.ErrConflict("Request already in progress")
		default:
			defer func() {
				if err := s.keys.Release(context.WithoutCancel(ctx), reservation); err != nil {
					s.logger.Warn("release idempotency key", "user_id", input.UserID, "error", err)
				}
			}()
		}
	}

	bet := &domain.Bet{
		ID:        uuid.New(),
		UserID:    input.UserID,
		MatchID:   input.MatchID,
		Stake:     input.Stake,
		Odds:      input.Odds,
		Selection: selection,
		Status:    domain.BetOpen,
		Winnings:  decimal.Zero,
	}
	if key != "" {
		bet.IdempotencyKey = &key
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if key != "" {
		existing, err := s.bets.FindByIdempotencyKey(ctx, tx, input.UserID, key)
		if err != nil {
			return nil, domain.ErrStoreUnavailable("find bet by idempotency key", err)
		}
		if existing != nil {
			return replayOf(existing, bet)
		}
	}

	match, err := s.matches.FindByID(ctx, tx, input.MatchID)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("find match", err)
	}
	if match == nil {
		return nil, domain.ErrMatchNotFound()
	}
	if match.Finished() {
		return nil, domain.ErrInvalidArgument("Match already finished")
	}

	entry, err := s.engine.DebitStake(ctx, tx, bet.UserID, bet.ID, bet.Stake)
	if err != nil {
		return nil, err
	}

	if err := s.bets.Insert(ctx, tx, bet); err != nil {
		if key != "" && infra.IsUniqueViolation(err, repository.BetIdempotencyIndex) {
			_ = tx.Rollback(ctx)
			return s.replay(ctx, bet)
		}
		return nil, domain.ErrStoreUnavailable("insert bet", err)
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewBetPlacedEvent(bet, entry.BalanceAfter)); err != nil {
		return nil, domain.ErrStoreUnavailable("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrStoreUnavailable("commit tx", err)
	}

	s.logger.Info("bet placed",
		"bet_id", bet.ID,
		"user_id", bet.UserID,
		"match_id", bet.MatchID,
		"stake", bet.Stake.String(),
		"odds", bet.Odds.String(),
		"selection", bet.Selection,
		"balance_after", entry.BalanceAfter.String(),
	)
	return &PlaceBetResult{Bet: bet}, nil
}

// replay loads the bet a concurrent request committed under the same key.
func (s *PlacementService) replay(ctx context.Context, attempted *domain.Bet) (*PlaceBetResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("begin tx", err)
	}
	defer tx.Rollback(ctx)

	existing, err := s.bets.FindByIdempotencyKey(ctx, tx, attempted.UserID, *attempted.IdempotencyKey)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("find bet by idempotency key", err)
	}
	if existing == nil {
		return nil, domain.ErrConflict("Request already in progress")
	}
	return replayOf(existing, attempted)
}

// replayOf returns existing as a replay if it was placed with the same terms.
func replayOf(existing, attempted *domain.Bet) (*PlaceBetResult, error) {
	if existing.MatchID != attempted.MatchID ||
		existing.Selection != attempted.Selection ||
		!existing.Stake.Equal(attempted.Stake) ||
		!existing.Odds.Equal(attempted.Odds) {
		return nil, domain.ErrConflict("Idempotency key reused with different parameters")
	}
	return &PlaceBetResult{Bet: existing, Replayed: true}, nil
}

// validatePlacement runs every input check that needs no store access.
func validatePlacement(input PlaceBetInput) (domain.Selection, error) {
	if input.UserID == uuid.Nil || input.MatchID == uuid.Nil {
		return "", domain.ErrInvalidArgument("Missing required fields")
	}
	if err := domain.ValidateStake(input.Stake); err != nil {
		return "", domain.ErrInvalidArgument("Invalid stake")
	}
	if err := domain.ValidateOdds(input.Odds); err != nil {
		return "", domain.ErrInvalidArgument("Invalid odds")
	}
	if err := domain.ValidatePayout(input.Stake, input.Odds); err != nil {
		return "", domain.ErrInvalidArgument("Potential payout too large")
	}
	selection, err := domain.ParseSelection(input.Selection)
	if err != nil {
		return "", domain.ErrInvalidArgument("Invalid selection")
	}
	if err := domain.ValidateIdempotencyKey(input.IdempotencyKey); err != nil {
		return "", domain.ErrInvalidArgument("Invalid idempotency key")
	}
	return selection, nil
}

func (s *PlacementService) observe(input PlaceBetInput, result *PlaceBetResult, err error) {
	outcome := "accepted"
	switch {
	case err != nil:
		outcome = "error"
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			outcome = strings.ToLower(appErr.Code)
		}
		if outcome == "error" || domain.IsCode(err, domain.CodeStoreUnavailable) {
			s.logger.Error("place bet failed", "user_id", input.UserID, "match_id", input.MatchID, "error", err)
		} else {
			s.logger.Debug("bet rejected", "user_id", input.UserID, "match_id", input.MatchID, "reason", err)
		}
	case result.Replayed:
		outcome = "replayed"
	}

	if s.metrics == nil {
		return
	}
	s.metrics.BetsPlaced.WithLabelValues(outcome).Inc()
	if outcome == "accepted" {
		f, _ := result.Bet.Stake.Float64()
		s.metrics.StakeAccepted.Add(f)
	}
}
