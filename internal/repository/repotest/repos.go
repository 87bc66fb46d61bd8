package repotest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type profileRepo struct{ s *Store }

func (r profileRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpFindProfile, id); err != nil {
		return nil, err
	}
	p, ok := r.s.state.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r profileRepo) Create(_ context.Context, _ repository.DBTX, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.profiles[profile.ID]; ok {
		return uniqueViolation("profiles_pkey")
	}
	now := time.Now().UTC()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.s.state.profiles[profile.ID] = *profile
	return nil
}

func (r profileRepo) DebitIfSufficient(_ context.Context, _ repository.DBTX, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpDebit, id); err != nil {
		return decimal.Zero, false, err
	}
	p, ok := r.s.state.profiles[id]
	if !ok || p.Balance.LessThan(amount) {
		return decimal.Zero, false, nil
	}
	p.Balance = p.Balance.Sub(amount)
	p.UpdatedAt = time.Now().UTC()
	r.s.state.profiles[id] = p
	return p.Balance, true, nil
}

func (r profileRepo) Credit(_ context.Context, _ repository.DBTX, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpCredit, id); err != nil {
		return decimal.Zero, false, err
	}
	p, ok := r.s.state.profiles[id]
	if !ok {
		return decimal.Zero, false, nil
	}
	p.Balance = p.Balance.Add(amount)
	p.UpdatedAt = time.Now().UTC()
	r.s.state.profiles[id] = p
	return p.Balance, true, nil
}

type matchRepo struct{ s *Store }

func (r matchRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpFindMatch, id); err != nil {
		return nil, err
	}
	m, ok := r.s.state.matches[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r matchRepo) ListFinishedWithOpenBets(_ context.Context, _ repository.DBTX, limit int) ([]domain.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpListFinished, uuid.Nil); err != nil {
		return nil, err
	}
	open := make(map[uuid.UUID]bool)
	for _, b := range r.s.state.bets {
		if b.Status == domain.BetOpen {
			open[b.MatchID] = true
		}
	}
	var out []domain.Match
	for _, m := range r.s.state.matches {
		if m.Finished() && open[m.ID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type betRepo struct{ s *Store }

func (r betRepo) Insert(_ context.Context, _ repository.DBTX, bet *domain.Bet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpInsertBet, bet.ID); err != nil {
		return err
	}
	if _, ok := r.s.state.profiles[bet.UserID]; !ok {
		return fmt.Errorf("insert bet: user %s violates bets_user_id_fkey", bet.UserID)
	}
	if _, ok := r.s.state.matches[bet.MatchID]; !ok {
		return fmt.Errorf("insert bet: match %s violates bets_match_id_fkey", bet.MatchID)
	}
	if bet.IdempotencyKey != nil {
		for _, other := range r.s.state.bets {
			if other.UserID == bet.UserID && other.IdempotencyKey != nil && *other.IdempotencyKey == *bet.IdempotencyKey {
				return fmt.Errorf("insert bet: %w", uniqueViolation(repository.BetIdempotencyIndex))
			}
		}
	}
	bet.PlacedAt = time.Now().UTC()
	r.s.state.bets[bet.ID] = *bet
	r.s.state.betOrder = append(r.s.state.betOrder, bet.ID)
	return nil
}

func (r betRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.state.bets[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r betRepo) FindByIdempotencyKey(_ context.Context, _ repository.DBTX, userID uuid.UUID, key string) (*domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpFindBetByKey, userID); err != nil {
		return nil, err
	}
	for _, id := range r.s.state.betOrder {
		b := r.s.state.bets[id]
		if b.UserID == userID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return &b, nil
		}
	}
	return nil, nil
}

func (r betRepo) ListOpenByMatch(_ context.Context, _ repository.DBTX, matchID uuid.UUID) ([]domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpListOpenBets, matchID); err != nil {
		return nil, err
	}
	var out []domain.Bet
	for _, id := range r.s.state.betOrder {
		b := r.s.state.bets[id]
		if b.MatchID == matchID && b.Status == domain.BetOpen {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r betRepo) SettleIfOpen(_ context.Context, _ repository.DBTX, id uuid.UUID, s domain.Settlement) (*domain.Bet, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpSettleBet, id); err != nil {
		return nil, false, err
	}
	b, ok := r.s.state.bets[id]
	if !ok || b.Status != domain.BetOpen {
		return nil, false, nil
	}
	result := s.Result
	now := time.Now().UTC()
	b.Status = s.Status
	b.Result = &result
	b.Winnings = s.Winnings
	b.SettledAt = &now
	r.s.state.bets[id] = b
	return &b, true, nil
}

func (r betRepo) ListWonWithoutCredit(_ context.Context, _ repository.DBTX, limit int) ([]domain.Bet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpListUncredited, uuid.Nil); err != nil {
		return nil, err
	}
	credited := make(map[uuid.UUID]bool)
	for _, e := range r.s.state.entries {
		if e.Kind == domain.EntryWinCredit && e.BetID != nil {
			credited[*e.BetID] = true
		}
	}
	var out []domain.Bet
	for _, id := range r.s.state.betOrder {
		b := r.s.state.bets[id]
		if b.Status == domain.BetWon && b.Winnings.IsPositive() && !credited[id] {
			out = append(out, b)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type entryRepo struct{ s *Store }

func (r entryRepo) Insert(_ context.Context, _ repository.DBTX, entry *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpInsertEntry, entry.ProfileID); err != nil {
		return err
	}
	if entry.BetID != nil {
		for _, e := range r.s.state.entries {
			if e.BetID != nil && *e.BetID == *entry.BetID && e.Kind == entry.Kind {
				return fmt.Errorf("insert ledger entry: %w", uniqueViolation(repository.LedgerBetKindIndex))
			}
		}
	}
	entry.CreatedAt = time.Now().UTC()
	r.s.state.entries = append(r.s.state.entries, *entry)
	return nil
}

func (r entryRepo) ListByProfile(_ context.Context, _ repository.DBTX, profileID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.s.state.entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpInsertOutbox, draft.EventID); err != nil {
		return err
	}
	r.s.state.outboxSeq++
	r.s.state.outbox = append(r.s.state.outbox, domain.OutboxRecord{SeqID: r.s.state.outboxSeq, OutboxDraft: draft})
	return nil
}

func (r outboxRepo) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpFetchOutbox, uuid.Nil); err != nil {
		return nil, err
	}
	var out []domain.OutboxRecord
	for _, rec := range r.s.state.outbox {
		if r.s.state.published[rec.SeqID] {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpMarkPublished, uuid.Nil); err != nil {
		return err
	}
	for _, id := range ids {
		r.s.state.published[id] = true
	}
	return nil
}
