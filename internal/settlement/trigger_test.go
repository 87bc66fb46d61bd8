package settlement

import (
	"context"
	"testing"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/repository/repotest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMatchFinished(t *testing.T) {
	ctx := context.Background()

	t.Run("settles the named match", func(t *testing.T) {
		store := repotest.New()
		w := newWorker(store, nil)
		user := store.AddProfile("0")
		match := store.AddMatch("Home", "Away")
		bet := openBet(store, user, match, domain.SelectionAway, "10", "2.5")
		store.FinishMatch(match, domain.ResultAwayWin)

		require.NoError(t, w.HandleMatchFinished(ctx, []byte(`{"match_id":"`+match.String()+`"}`)))

		b, _ := store.Bet(bet)
		assert.Equal(t, domain.BetWon, b.Status)
		assert.Equal(t, "25", store.Balance(user).String())
	})

	t.Run("malformed payload", func(t *testing.T) {
		w := newWorker(repotest.New(), nil)
		err := w.HandleMatchFinished(ctx, []byte(`not json`))
		assert.True(t, domain.IsCode(err, domain.CodeInvalidArgument))

		err = w.HandleMatchFinished(ctx, []byte(`{}`))
		assert.True(t, domain.IsCode(err, domain.CodeInvalidArgument))
	})

	t.Run("unknown match", func(t *testing.T) {
		w := newWorker(repotest.New(), nil)
		err := w.HandleMatchFinished(ctx, []byte(`{"match_id":"`+uuid.NewString()+`"}`))
		assert.True(t, domain.IsCode(err, domain.CodeMatchNotFound))
	})
}
