package settlement

import (
	"log/slog"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome classifies what happened to one bet during a run.
type Outcome string

const (
	OutcomeSettled  Outcome = "settled"
	OutcomeSkipped  Outcome = "skipped"  // no longer open when the gate ran
	OutcomeFailed   Outcome = "failed"   // rolled back; still open
	OutcomeRepaired Outcome = "repaired" // missing win credit paid by Reconcile
)

// ItemResult is the per-bet entry of a Report.
type ItemResult struct {
	BetID    uuid.UUID
	MatchID  uuid.UUID
	UserID   uuid.UUID
	Outcome  Outcome
	Status   domain.BetStatus
	Winnings decimal.Decimal
	Err      error
}

// MatchFailure records a match whose open bets could not be loaded.
type MatchFailure struct {
	MatchID uuid.UUID
	Err     error
}

// Report describes a settlement or reconcile run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Items         []ItemResult
	MatchFailures []MatchFailure

	MatchesScanned int
	MatchesFailed  int
	BetsSettled    int
	BetsWon        int
	BetsLost       int
	Skipped        int
	Failed         int
	Repaired       int
	TotalWinnings  decimal.Decimal
	TotalRepaired  decimal.Decimal
}

func newReport(now time.Time) *Report {
	return &Report{StartedAt: now, TotalWinnings: decimal.Zero, TotalRepaired: decimal.Zero}
}

func (r *Report) record(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case OutcomeSettled:
		r.BetsSettled++
		if item.Status == domain.BetWon {
			r.BetsWon++
			r.TotalWinnings = r.TotalWinnings.Add(item.Winnings)
		} else {
			r.BetsLost++
		}
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomeRepaired:
		r.Repaired++
		r.TotalRepaired = r.TotalRepaired.Add(item.Winnings)
	}
}

func (r *Report) failMatch(matchID uuid.UUID, err error) {
	r.MatchesFailed++
	r.MatchFailures = append(r.MatchFailures, MatchFailure{MatchID: matchID, Err: err})
}

// Errs returns the errors of failed items and matches.
func (r *Report) Errs() []error {
	var errs []error
	for _, mf := range r.MatchFailures {
		errs = append(errs, mf.Err)
	}
	for _, it := range r.Items {
		if it.Err != nil {
			errs = append(errs, it.Err)
		}
	}
	return errs
}

// Summary is the line logged after every run.
type Summary struct {
	BetsSettled   int       `json:"betsSettled"`
	TotalWinnings float64   `json:"totalWinnings"`
	Timestamp     time.Time `json:"timestamp"`
}

// Summary condenses the report.
func (r *Report) Summary() Summary {
	total, _ := r.TotalWinnings.Float64()
	ts := r.FinishedAt
	if ts.IsZero() {
		ts = r.StartedAt
	}
	return Summary{BetsSettled: r.BetsSettled, TotalWinnings: total, Timestamp: ts.UTC()}
}

// LogValue groups the counters so a report can be logged as one attribute.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("matches_scanned", r.MatchesScanned),
		slog.Int("matches_failed", r.MatchesFailed),
		slog.Int("bets_settled", r.BetsSettled),
		slog.Int("bets_won", r.BetsWon),
		slog.Int("bets_lost", r.BetsLost),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
		slog.Int("repaired", r.Repaired),
		slog.String("total_winnings", r.TotalWinnings.StringFixed(2)),
	)
}
