package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetPlacer places bets. Satisfied by *service.PlacementService.
type BetPlacer interface {
	PlaceBet(ctx context.Context, input service.PlaceBetInput) (*service.PlaceBetResult, error)
}

// BetHandler handles bet endpoints.
type BetHandler struct {
	svc    BetPlacer
	logger *slog.Logger
}

// NewBetHandler creates a new BetHandler.
func NewBetHandler(svc BetPlacer, logger *slog.Logger) *BetHandler {
	return &BetHandler{svc: svc, logger: logger}
}

// placeBetRequest keeps stake and odds raw so that strings, nulls and
// absent fields can be told apart from numbers.
type placeBetRequest struct {
	UserID         string          `json:"user_id"`
	MatchID        string          `json:"match_id"`
	Stake          json.RawMessage `json:"stake"`
	Odds           json.RawMessage `json:"odds"`
	Selection      *string         `json:"selection"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type betResponse struct {
	Bet *domain.Bet `json:"bet"`
}

// PlaceBet handles POST /bets.
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondError(w, domain.ErrInvalidArgument("Invalid request body"))
		return
	}

	input, err := req.toInput()
	if err != nil {
		RespondError(w, err)
		return
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		input.IdempotencyKey = key
	}

	result, err := h.svc.PlaceBet(r.Context(), input)
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("place bet", "request_id", GetRequestID(r.Context()), "error", err)
		}
		RespondError(w, err)
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	RespondJSON(w, http.StatusCreated, betResponse{Bet: result.Bet})
}

func (req placeBetRequest) toInput() (service.PlaceBetInput, error) {
	var input service.PlaceBetInput

	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.MatchID) == "" || req.Selection == nil {
		return input, domain.ErrInvalidArgument("Missing required fields")
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return input, domain.ErrInvalidArgument("Invalid user_id")
	}
	matchID, err := uuid.Parse(strings.TrimSpace(req.MatchID))
	if err != nil {
		return input, domain.ErrInvalidArgument("Invalid match_id")
	}
	stake, ok := parseNumber(req.Stake)
	if !ok {
		return input, domain.ErrInvalidArgument("Invalid stake")
	}
	odds, ok := parseNumber(req.Odds)
	if !ok {
		return input, domain.ErrInvalidArgument("Invalid odds")
	}

	input.UserID = userID
	input.MatchID = matchID
	input.Stake = stake
	input.Odds = odds
	input.Selection = *req.Selection
	input.IdempotencyKey = req.IdempotencyKey
	return input, nil
}

// maxNumberLen bounds stake and odds literals. Parsing cost grows with the
// digit count, so longer literals are rejected unread.
const maxNumberLen = 32

// parseNumber accepts only JSON numbers. The literal is parsed as a decimal
// so no precision is lost to float64. Extreme exponents are rejected here so
// later rounding and comparisons stay cheap.
func parseNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || len(raw) > maxNumberLen || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	if err := domain.CheckBounds(d); err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func isClientError(err error) bool {
	for _, code := range []string{
		domain.CodeInvalidArgument,
		domain.CodeProfileNotFound,
		domain.CodeMatchNotFound,
		domain.CodeInsufficientFunds,
		domain.CodeConflict,
		domain.CodeRateLimited,
	} {
		if domain.IsCode(err, code) {
			return true
		}
	}
	return false
}
