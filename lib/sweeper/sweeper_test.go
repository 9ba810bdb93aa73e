package sweeper

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib"
	"github.com/ptvalert/ptvalert/lib/models"
	"github.com/ptvalert/ptvalert/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSender struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSender) Send(ctx context.Context, sub *models.Subscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *countingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSweeper(t *testing.T) (*Sweeper, *lib.Service, *countingSender) {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	kv := kvstore.NewNamespaces(nil, db)

	cfg := &config.Config{ServerDNS: "https://ptvalert.example"}
	log := zap.NewNop()
	stub := &countingSender{}
	svc := lib.NewService(nil, cfg, log, kv, senders.Registry{"webpush": stub}, http.DefaultTransport)

	sweeper := &Sweeper{
		log:    log,
		svc:    svc,
		sent:   &sentLog{log: log, kv: kv.Notified},
		window: 24 * time.Hour,
	}
	return sweeper, svc, stub
}

func seedMarker(t *testing.T, svc *lib.Service, id string, age time.Duration) {
	t.Helper()
	_, err := svc.Markers.Create(context.Background(), &models.Marker{
		ID:          id,
		Location:    &models.LatLng{Lat: -37.8136, Lng: 144.9631},
		Description: "marker " + id,
		Timestamp:   time.Now().UTC().Add(-age).Format(time.RFC3339),
	})
	require.NoError(t, err)
}

func seedSubscription(t *testing.T, svc *lib.Service, endpoint string) {
	t.Helper()
	_, err := svc.Subscriptions.Save(context.Background(), &models.Subscription{
		Subscription: &models.WebPushEndpoint{
			Endpoint: endpoint,
			Keys:     models.PushKeys{P256dh: "p", Auth: "a"},
		},
	})
	require.NoError(t, err)
}

func TestSweepNotifiesRecentMarkersOnce(t *testing.T) {
	sweeper, svc, stub := newTestSweeper(t)
	ctx := context.Background()

	seedSubscription(t, svc, "https://push.example/one")
	seedSubscription(t, svc, "https://push.example/two")
	seedMarker(t, svc, "recent", 1*time.Hour)
	seedMarker(t, svc, "old", 48*time.Hour)

	sweeper.sweep(ctx, time.Now().UTC())
	// One in-window marker, two subscriptions.
	assert.Equal(t, 2, stub.count())

	// The second sweep overlaps the same window; the sent log
	// suppresses re-notification.
	sweeper.sweep(ctx, time.Now().UTC())
	assert.Equal(t, 2, stub.count())
}

func TestSweepPicksUpNewMarkers(t *testing.T) {
	sweeper, svc, stub := newTestSweeper(t)
	ctx := context.Background()

	seedSubscription(t, svc, "https://push.example/one")
	seedMarker(t, svc, "first", 1*time.Hour)
	sweeper.sweep(ctx, time.Now().UTC())
	assert.Equal(t, 1, stub.count())

	seedMarker(t, svc, "second", 10*time.Minute)
	sweeper.sweep(ctx, time.Now().UTC())
	assert.Equal(t, 2, stub.count())
}

type gatedSender struct {
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSender) Send(ctx context.Context, sub *models.Subscription, payload []byte) error {
	s.entered <- struct{}{}
	<-s.release
	return nil
}

func newGatedSweeper(t *testing.T) (*Sweeper, *gatedSender) {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	kv := kvstore.NewNamespaces(nil, db)

	cfg := &config.Config{ServerDNS: "https://ptvalert.example"}
	log := zap.NewNop()
	stub := &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
	svc := lib.NewService(nil, cfg, log, kv, senders.Registry{"webpush": stub}, http.DefaultTransport)

	seedSubscription(t, svc, "https://push.example/one")
	seedMarker(t, svc, "m1", 1*time.Hour)

	return &Sweeper{
		log:    log,
		svc:    svc,
		sent:   &sentLog{log: log, kv: kv.Notified},
		window: 24 * time.Hour,
	}, stub
}

func TestSweepersDoNotShareLock(t *testing.T) {
	first, firstSender := newGatedSweeper(t)
	second, secondSender := newGatedSweeper(t)

	evt := sweepWakeupEvent{event{time.Now().UTC()}}
	done := make(chan struct{}, 2)
	go func() { first.handleEvent(evt); done <- struct{}{} }()
	go func() { second.handleEvent(evt); done <- struct{}{} }()

	// Both sweeps must reach their sender while the other is still
	// mid-sweep; a lock shared across instances would hold one back.
	timeout := time.After(5 * time.Second)
	for _, entered := range []chan struct{}{firstSender.entered, secondSender.entered} {
		select {
		case <-entered:
		case <-timeout:
			t.Fatal("sweep blocked by another sweeper instance")
		}
	}

	close(firstSender.release)
	close(secondSender.release)
	<-done
	<-done
}

func TestSentLog(t *testing.T) {
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	log := &sentLog{log: zap.NewNop(), kv: kvstore.InNamespace(db, "notified")}
	ctx := context.Background()

	sendable, err := log.Sendable(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, sendable)

	require.NoError(t, log.Sent(ctx, "m1"))

	sendable, err = log.Sendable(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, sendable)
}

func TestSentLogPurge(t *testing.T) {
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	store := kvstore.InNamespace(db, "notified")
	log := &sentLog{log: zap.NewNop(), kv: store}
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Put(ctx, "fresh", []byte(now.Format(time.RFC3339))))
	require.NoError(t, store.Put(ctx, "stale", []byte(now.Add(-48*time.Hour).Format(time.RFC3339))))
	require.NoError(t, store.Put(ctx, "garbled", []byte("not a time")))

	purged, err := log.Purge(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	sendable, err := log.Sendable(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, sendable)
}
