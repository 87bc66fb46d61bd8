package settlement

import (
	"context"
	"encoding/json"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/google/uuid"
)

// HandleMatchFinished settles a match named by a match-finished message.
// Malformed messages and unknown matches are rejected without retry; the next
// scheduled run still picks up anything a message failed to settle.
func (w *Worker) HandleMatchFinished(ctx context.Context, value []byte) error {
	var msg domain.MatchFinishedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return domain.ErrInvalidArgument("malformed match finished message: " + err.Error())
	}
	if msg.MatchID == uuid.Nil {
		return domain.ErrInvalidArgument("match finished message without match_id")
	}

	report, err := w.SettleMatch(ctx, msg.MatchID)
	if err != nil {
		return err
	}
	w.logger.Info("match settled on event", "match_id", msg.MatchID, "summary", report.Summary(), "failed", report.Failed)
	return nil
}
