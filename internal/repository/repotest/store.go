// Package repotest provides an in-memory implementation of the repository
// interfaces for unit tests. Transactions are serialized and roll back by
// restoring a snapshot, so tests observe the same all-or-nothing behavior as
// Postgres without a database.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Operation names accepted by Fail and FailFor.
const (
	OpBegin          = "begin"
	OpCommit         = "commit"
	OpFindProfile    = "profiles.FindByID"
	OpDebit          = "profiles.DebitIfSufficient"
	OpCredit         = "profiles.Credit"
	OpFindMatch      = "matches.FindByID"
	OpListFinished   = "matches.ListFinishedWithOpenBets"
	OpInsertBet      = "bets.Insert"
	OpFindBetByKey   = "bets.FindByIdempotencyKey"
	OpListOpenBets   = "bets.ListOpenByMatch"
	OpSettleBet      = "bets.SettleIfOpen"
	OpListUncredited = "bets.ListWonWithoutCredit"
	OpInsertEntry    = "entries.Insert"
	OpInsertOutbox   = "outbox.Insert"
	OpFetchOutbox    = "outbox.FetchUnpublished"
	OpMarkPublished  = "outbox.MarkPublished"
)

type state struct {
	profiles  map[uuid.UUID]domain.Profile
	matches   map[uuid.UUID]domain.Match
	bets      map[uuid.UUID]domain.Bet
	betOrder  []uuid.UUID
	entries   []domain.LedgerEntry
	outbox    []domain.OutboxRecord
	published map[int64]bool
	outboxSeq int64
}

func newState() state {
	return state{
		profiles:  make(map[uuid.UUID]domain.Profile),
		matches:   make(map[uuid.UUID]domain.Match),
		bets:      make(map[uuid.UUID]domain.Bet),
		published: make(map[int64]bool),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	for k, v := range s.published {
		c.published[k] = v
	}
	c.betOrder = append([]uuid.UUID(nil), s.betOrder...)
	c.entries = append([]domain.LedgerEntry(nil), s.entries...)
	c.outbox = append([]domain.OutboxRecord(nil), s.outbox...)
	c.outboxSeq = s.outboxSeq
	return c
}

// Store is an in-memory ledger store.
type Store struct {
	txMu sync.Mutex // held for the lifetime of a transaction

	mu       sync.Mutex
	state    state
	snapshot state
	faults   map[string]func(id uuid.UUID) error
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), faults: make(map[string]func(uuid.UUID) error)}
}

// Fail makes every call of op return err until ClearFaults.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = func(uuid.UUID) error { return err }
}

// FailFor makes op return err only when called for id.
func (s *Store) FailFor(op string, id uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = func(got uuid.UUID) error {
		if got == id {
			return err
		}
		return nil
	}
}

// ClearFaults removes all injected failures.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]func(uuid.UUID) error)
}

// fault must be called with s.mu held.
func (s *Store) fault(op string, id uuid.UUID) error {
	if f, ok := s.faults[op]; ok {
		if err := f(id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Begin starts a transaction. Transactions run one at a time.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	err := s.fault(OpBegin, uuid.Nil)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.txMu.Lock()
	s.mu.Lock()
	s.snapshot = s.state.clone()
	s.mu.Unlock()
	return &Tx{store: s}, nil
}

// Tx is a store transaction. Only Commit and Rollback are implemented; the
// repositories ignore the DBTX they are handed.
type Tx struct {
	pgx.Tx
	store *Store
	done  bool
}

// Commit keeps the transaction's writes. An injected commit failure rolls back.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.store.txMu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.fault(OpCommit, uuid.Nil); err != nil {
		t.store.state = t.store.snapshot
		return err
	}
	return nil
}

// Rollback restores the state seen at Begin.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.store.txMu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.state = t.store.snapshot
	return nil
}

// --- seeding and inspection ---

// AddProfile creates a profile with the given balance.
func (s *Store) AddProfile(balance string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	now := time.Now().UTC()
	s.state.profiles[id] = domain.Profile{ID: id, Balance: decimal.RequireFromString(balance), CreatedAt: now, UpdatedAt: now}
	return id
}

// AddMatch creates a scheduled match.
func (s *Store) AddMatch(home, away string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.state.matches[id] = domain.Match{ID: id, HomeTeam: home, AwayTeam: away, Status: domain.MatchScheduled, UpdatedAt: time.Now().UTC()}
	return id
}

// FinishMatch marks a match finished with the given result.
func (s *Store) FinishMatch(id uuid.UUID, result domain.MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.matches[id]
	m.Status = domain.MatchFinished
	m.Result = &result
	m.UpdatedAt = time.Now().UTC()
	s.state.matches[id] = m
}

// PutMatch stores m as-is, including states the schema would reject.
func (s *Store) PutMatch(m domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.matches[m.ID] = m
}

// PutBet stores b as-is, bypassing placement.
func (s *Store) PutBet(b domain.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.bets[b.ID]; !ok {
		s.state.betOrder = append(s.state.betOrder, b.ID)
	}
	s.state.bets[b.ID] = b
}

// Balance returns a profile's balance.
func (s *Store) Balance(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.profiles[id].Balance
}

// Bet returns a stored bet.
func (s *Store) Bet(id uuid.UUID) (domain.Bet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bets[id]
	return b, ok
}

// Bets returns all bets in insertion order.
func (s *Store) Bets() []domain.Bet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Bet, 0, len(s.state.betOrder))
	for _, id := range s.state.betOrder {
		out = append(out, s.state.bets[id])
	}
	return out
}

// Entries returns all ledger entries in insertion order.
func (s *Store) Entries() []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LedgerEntry(nil), s.state.entries...)
}

// Events returns all outbox records, published or not.
func (s *Store) Events() []domain.OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxRecord(nil), s.state.outbox...)
}

// Published reports whether an outbox row was marked published.
func (s *Store) Published(seqID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.published[seqID]
}

// TotalMoney returns the sum of all balances plus the stakes of open bets.
func (s *Store) TotalMoney() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, p := range s.state.profiles {
		total = total.Add(p.Balance)
	}
	for _, b := range s.state.bets {
		if b.Status == domain.BetOpen {
			total = total.Add(b.Stake)
		}
	}
	return total
}

// Profiles returns the ProfileRepository view of the store.
func (s *Store) Profiles() repository.ProfileRepository { return profileRepo{s} }

// Matches returns the MatchRepository view of the store.
func (s *Store) Matches() repository.MatchRepository { return matchRepo{s} }

// BetRepo returns the BetRepository view of the store.
func (s *Store) BetRepo() repository.BetRepository { return betRepo{s} }

// LedgerEntries returns the LedgerEntryRepository view of the store.
func (s *Store) LedgerEntries() repository.LedgerEntryRepository { return entryRepo{s} }

// Outbox returns the OutboxRepository view of the store.
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

// Set returns every repository view of the store.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Profiles: s.Profiles(),
		Matches:  s.Matches(),
		Bets:     s.BetRepo(),
		Entries:  s.LedgerEntries(),
		Outbox:   s.Outbox(),
	}
}

// Ping always succeeds, so the store can back health checks.
func (s *Store) Ping(context.Context) error { return nil }
