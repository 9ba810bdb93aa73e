package lib

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib/models"
	"github.com/ptvalert/ptvalert/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSender classifies deliveries by endpoint substring: "gone"
// endpoints fail permanently, "flaky" endpoints fail transiently.
type stubSender struct {
	mu    sync.Mutex
	sent  []string
	calls int
}

func (s *stubSender) Send(ctx context.Context, sub *models.Subscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	endpoint := sub.Subscription.Endpoint
	switch {
	case strings.Contains(endpoint, "gone"):
		return fmt.Errorf("stub: %w", models.ErrEndpointGone)
	case strings.Contains(endpoint, "flaky"):
		return fmt.Errorf("stub: transient failure")
	default:
		s.sent = append(s.sent, endpoint)
		return nil
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *SubscriptionRepository, *stubSender) {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)

	subs := &SubscriptionRepository{log: zap.NewNop(), kv: kvstore.InNamespace(db, "subscriptions")}
	stub := &stubSender{}
	cfg := &config.Config{ServerDNS: "https://ptvalert.example"}

	dispatcher := &Dispatcher{
		cfg:     cfg,
		log:     zap.NewNop(),
		subs:    subs,
		senders: senders.Registry{"webpush": stub},
	}
	return dispatcher, subs, stub
}

func TestBuildPayload(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)

	marker := &models.Marker{
		ID:          "m1",
		Title:       "Flinders St",
		Description: "Station entrance closed",
	}
	payload := dispatcher.BuildPayload(marker)

	assert.Equal(t, "Flinders St", payload.Title)
	assert.Equal(t, "Station entrance closed", payload.Body)
	assert.Equal(t, "m1", payload.Data.MarkerID)
	assert.Equal(t, "https://ptvalert.example/?marker=m1", payload.Data.URL)
	assert.NotEmpty(t, payload.Data.SentAt)
	assert.NotEmpty(t, payload.Icon)
	assert.NotEmpty(t, payload.Badge)
}

func TestBuildPayloadDefaults(t *testing.T) {
	dispatcher, _, _ := newTestDispatcher(t)

	payload := dispatcher.BuildPayload(&models.Marker{ID: "m2"})
	assert.Equal(t, models.DefaultPayloadTitle, payload.Title)
	assert.Equal(t, models.DefaultPayloadBody, payload.Body)
}

func TestDispatchToAllPrunesGoneEndpoints(t *testing.T) {
	ctx := context.Background()
	dispatcher, subs, stub := newTestDispatcher(t)

	endpoints := []string{
		"https://push.example/ok-1",
		"https://push.example/ok-2",
		"https://push.example/gone-1",
		"https://push.example/gone-2",
		"https://push.example/flaky-1",
	}
	for _, endpoint := range endpoints {
		_, err := subs.Save(ctx, subscriptionFor(endpoint))
		require.NoError(t, err)
	}

	all, err := subs.ListAll(ctx)
	require.NoError(t, err)

	payload := dispatcher.BuildPayload(&models.Marker{ID: "m1", Description: "x"})
	summary := dispatcher.DispatchToAll(ctx, payload, all)

	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, 2, summary.Pruned)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, stub.calls)

	remaining, err := subs.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 3) // N-K records survive
	for id := range remaining {
		assert.NotContains(t, remaining[id].Subscription.Endpoint, "gone")
	}
}

func TestDispatchToAllEmptySet(t *testing.T) {
	ctx := context.Background()
	dispatcher, _, stub := newTestDispatcher(t)

	payload := dispatcher.BuildPayload(&models.Marker{ID: "m1", Description: "x"})
	summary := dispatcher.DispatchToAll(ctx, payload, models.Subscriptions{})

	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, 0, stub.calls)
}
