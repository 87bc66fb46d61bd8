//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorMessage checks the {"error": ...} body.
func AssertErrorMessage(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	var errResp struct {
		Error string `json:"error"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Error != expected {
		t.Errorf("expected error %q, got %q", expected, errResp.Error)
	}
}

// DecodeBet decodes a {"bet": ...} response.
func DecodeBet(t *testing.T, resp *http.Response) domain.Bet {
	t.Helper()
	var body struct {
		Bet domain.Bet `json:"bet"`
	}
	DecodeJSON(t, resp, &body)
	return body.Bet
}

// AssertBalance checks a profile's balance against an exact decimal string.
func AssertBalance(t *testing.T, env *TestEnv, profileID uuid.UUID, expected string) {
	t.Helper()
	got := env.Balance(profileID)
	if !got.Equal(decimal.RequireFromString(expected)) {
		t.Errorf("balance: expected %s, got %s", expected, got)
	}
}
