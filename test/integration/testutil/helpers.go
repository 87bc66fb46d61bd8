//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// SeedProfile inserts a profile with the given balance and returns its ID.
func (env *TestEnv) SeedProfile(balance string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		"INSERT INTO profiles (id, balance) VALUES ($1, $2)", id, balance)
	if err != nil {
		env.t.Fatalf("SeedProfile: %v", err)
	}
	return id
}

// SeedMatch inserts a scheduled match and returns its ID.
func (env *TestEnv) SeedMatch(home, away string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		"INSERT INTO matches (id, home_team, away_team, status) VALUES ($1, $2, $3, 'scheduled')",
		id, home, away)
	if err != nil {
		env.t.Fatalf("SeedMatch: %v", err)
	}
	return id
}

// FinishMatch records a final result for a match.
func (env *TestEnv) FinishMatch(id uuid.UUID, result domain.MatchResult) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx,
		"UPDATE matches SET status = 'finished', result = $2, updated_at = now() WHERE id = $1",
		id, string(result))
	if err != nil {
		env.t.Fatalf("FinishMatch: %v", err)
	}
}

// Balance returns a profile's current balance.
func (env *TestEnv) Balance(id uuid.UUID) decimal.Decimal {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n pgtype.Numeric
	if err := env.Pool.QueryRow(ctx, "SELECT balance FROM profiles WHERE id = $1", id).Scan(&n); err != nil {
		env.t.Fatalf("Balance: %v", err)
	}
	balance, err := infra.NumericToDecimal(n)
	if err != nil {
		env.t.Fatalf("Balance: %v", err)
	}
	return balance
}

// Bet loads a bet through the repository.
func (env *TestEnv) Bet(id uuid.UUID) *domain.Bet {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bet, err := env.Repos.Bets.FindByID(ctx, env.Pool, id)
	if err != nil {
		env.t.Fatalf("Bet: %v", err)
	}
	if bet == nil {
		env.t.Fatalf("Bet: %s not found", id)
	}
	return bet
}

// CountRows returns the number of rows matching a WHERE clause on table.
func (env *TestEnv) CountRows(table, where string, args ...interface{}) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := env.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		env.t.Fatalf("CountRows: %v", err)
	}
	return n
}

// PlaceBetBody builds a POST /bets request body.
func PlaceBetBody(userID, matchID uuid.UUID, stake, odds float64, selection string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":   userID.String(),
		"match_id":  matchID.String(),
		"stake":     stake,
		"odds":      odds,
		"selection": selection,
	}
}

// POST performs a JSON POST request with optional extra headers.
func (env *TestEnv) POST(path string, body interface{}, headers map[string]string) *http.Response {
	env.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		env.t.Fatalf("POST %s: marshal: %v", path, err)
	}

	req, err := http.NewRequest(http.MethodPost, env.Server.URL+path, bytes.NewReader(data))
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// GET performs a GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}
