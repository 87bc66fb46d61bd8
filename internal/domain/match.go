package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state reported by the match outcome feed.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchFinished  MatchStatus = "finished"
)

// MatchResult is the official outcome of a finished match.
type MatchResult string

const (
	ResultHomeWin MatchResult = "home_win"
	ResultAwayWin MatchResult = "away_win"
	ResultDraw    MatchResult = "draw"
)

// Valid reports whether r is one of the known results.
func (r MatchResult) Valid() bool {
	switch r {
	case ResultHomeWin, ResultAwayWin, ResultDraw:
		return true
	}
	return false
}

// Match represents a matches row. Owned by the ingestion side; read-only here.
type Match struct {
	ID            uuid.UUID    `json:"id"`
	HomeTeam      string       `json:"home_team"`
	AwayTeam      string       `json:"away_team"`
	Status        MatchStatus  `json:"status"`
	Result        *MatchResult `json:"result"`
	HomeTeamScore *int         `json:"home_team_score"`
	AwayTeamScore *int         `json:"away_team_score"`
	KickoffAt     *time.Time   `json:"kickoff_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Finished reports whether the match has reached its terminal state.
func (m *Match) Finished() bool {
	return m.Status == MatchFinished
}

// FinalResult returns the result of a finished match. A finished match
// without a valid result, or a result on an unfinished match, is an error.
func (m *Match) FinalResult() (MatchResult, error) {
	if !m.Finished() {
		return "", fmt.Errorf("match %s is %s, not finished", m.ID, m.Status)
	}
	if m.Result == nil || !m.Result.Valid() {
		return "", fmt.Errorf("finished match %s has no valid result", m.ID)
	}
	return *m.Result, nil
}
