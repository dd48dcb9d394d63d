package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"onboardingportal/internal/audit"
	auditmem "onboardingportal/internal/audit/store/memory"
	"onboardingportal/internal/platform/metrics"
)

var testMetrics = metrics.New()

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kgo.ProduceResults{{Err: f.err}}
	}
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		results[i] = kgo.ProduceResult{Record: r}
	}
	return results
}

func newTestRelay(store OutboxStore, producer Producer) *Relay {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, producer, "onboarding.audit", logger, testMetrics)
}

func appendEvents(t *testing.T, store *auditmem.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			Action: audit.ActionUserRegistered,
			UserID: "user-1",
		}))
	}
}

func TestDrainPublishesAndMarks(t *testing.T) {
	store := auditmem.New()
	producer := &fakeProducer{}
	relay := newTestRelay(store, producer)
	appendEvents(t, store, 3)

	require.NoError(t, relay.drainOnce(context.Background()))
	assert.Len(t, producer.records, 3)

	var p payload
	require.NoError(t, json.Unmarshal(producer.records[0].Value, &p))
	assert.Equal(t, "user_registered", p.Action)
	assert.Equal(t, "compliance", p.Category)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, []byte("user-1"), producer.records[0].Key)

	// A second pass finds nothing unpublished.
	require.NoError(t, relay.drainOnce(context.Background()))
	assert.Len(t, producer.records, 3)
}

func TestDrainEmptyOutbox(t *testing.T) {
	relay := newTestRelay(auditmem.New(), &fakeProducer{})
	require.NoError(t, relay.drainOnce(context.Background()))
}

func TestProduceFailureLeavesOutboxClaimed(t *testing.T) {
	store := auditmem.New()
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	relay := newTestRelay(store, producer)
	appendEvents(t, store, 2)

	err := relay.drainOnce(context.Background())
	require.Error(t, err)

	// Rows stay unpublished and are re-delivered once the broker recovers.
	producer.err = nil
	require.NoError(t, relay.drainOnce(context.Background()))
	assert.Len(t, producer.records, 2)
}
