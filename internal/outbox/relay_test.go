package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/repository/repotest"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []sent
	failKey  string
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKey != "" && string(key) == p.failKey {
		return errors.New("kafka: leader not available")
	}
	p.messages = append(p.messages, sent{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func seedEvent(t *testing.T, store *repotest.Store, user uuid.UUID) domain.OutboxDraft {
	t.Helper()
	bet := &domain.Bet{ID: uuid.New(), UserID: user, MatchID: uuid.New(), Stake: decimal.NewFromInt(10), Odds: decimal.NewFromInt(2), Selection: domain.SelectionHome, Status: domain.BetOpen}
	draft := domain.NewBetPlacedEvent(bet, decimal.NewFromInt(90))
	require.NoError(t, store.Outbox().Insert(context.Background(), nil, draft))
	return draft
}

func newRelay(store *repotest.Store, pub Publisher, metrics *infra.Metrics) *Relay {
	breaker := guard.NewCircuitBreaker(2, time.Minute, nil)
	return NewRelay(store, store.Outbox(), pub, breaker, metrics, slog.New(slog.DiscardHandler), Config{BatchSize: 10})
}

func TestPollOnce_PublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	pub := &fakePublisher{}
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	relay := newRelay(store, pub, metrics)

	user := uuid.New()
	draft := seedEvent(t, store, user)
	seedEvent(t, store, user)

	n, err := relay.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, pub.messages, 2)
	msg := pub.messages[0]
	assert.Equal(t, "sportsbet.bet.placed", msg.topic)
	assert.Equal(t, user.String(), msg.key)
	assert.Equal(t, draft.EventID.String(), msg.headers["event_id"])

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.value, &env))
	assert.Equal(t, draft.EventID.String(), env["event_id"])
	assert.Equal(t, "bet", env["aggregate_type"])
	assert.Contains(t, env, "payload")

	for _, rec := range store.Events() {
		assert.True(t, store.Published(rec.SeqID))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.OutboxPublished))

	n, err = relay.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing left")
}

func TestPollOnce_FailedKeyWaits(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	bad, good := uuid.New(), uuid.New()
	pub := &fakePublisher{failKey: bad.String()}
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	relay := newRelay(store, pub, metrics)

	seedEvent(t, store, bad)
	seedEvent(t, store, good)
	seedEvent(t, store, bad)

	n, err := relay.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, good.String(), pub.messages[0].key)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OutboxPublishErrors), "second event of the failed key is not attempted")

	events := store.Events()
	assert.False(t, store.Published(events[0].SeqID))
	assert.True(t, store.Published(events[1].SeqID))
	assert.False(t, store.Published(events[2].SeqID))
}

func TestPollOnce_BreakerOpensPerTopic(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	failing := uuid.New()
	pub := &fakePublisher{failKey: failing.String()}
	relay := newRelay(store, pub, nil)

	seedEvent(t, store, failing)
	for i := 0; i < 2; i++ {
		_, err := relay.PollOnce(ctx)
		require.NoError(t, err)
	}

	pub.failKey = ""
	seedEvent(t, store, uuid.New())
	n, err := relay.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "topic circuit open")
	assert.Empty(t, pub.messages)
}

func TestPollOnce_FetchError(t *testing.T) {
	store := repotest.New()
	store.Fail(repotest.OpFetchOutbox, errors.New("connection refused"))
	relay := newRelay(store, &fakePublisher{}, nil)

	_, err := relay.PollOnce(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestPollOnce_MarkErrorLeavesRowsUnpublished(t *testing.T) {
	store := repotest.New()
	seedEvent(t, store, uuid.New())
	store.Fail(repotest.OpMarkPublished, errors.New("connection reset"))
	relay := newRelay(store, &fakePublisher{}, nil)

	_, err := relay.PollOnce(context.Background())
	require.Error(t, err)
	assert.False(t, store.Published(store.Events()[0].SeqID))
}
