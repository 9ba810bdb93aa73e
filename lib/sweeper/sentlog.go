package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/ptvalert/ptvalert/kvstore"
	"go.uber.org/zap"
)

// sentLog records which markers a sweep has already notified, so
// overlapping sweep windows do not re-notify the same marker. Entries
// are keyed by marker id and hold the RFC3339 send time.
type sentLog struct {
	log *zap.Logger
	kv  kvstore.Store
}

// Sendable returns true when no notification for the marker has been
// recorded. Lookup errors err on the side of sending.
func (l *sentLog) Sendable(ctx context.Context, markerID string) (bool, error) {
	_, err := l.kv.Get(ctx, markerID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, kvstore.ErrNoSuchKey):
		return true, nil
	default:
		return true, err
	}
}

func (l *sentLog) Sent(ctx context.Context, markerID string) error {
	return l.kv.Put(ctx, markerID, []byte(time.Now().UTC().Format(time.RFC3339)))
}

// Purge drops entries sent at or before the cutoff, keeping the log
// bounded by the sweep window. Unparsable entries are dropped too.
func (l *sentLog) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := l.kv.Keys(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, key := range keys {
		raw, err := l.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		sentAt, parseErr := time.Parse(time.RFC3339, string(raw))
		if parseErr == nil && sentAt.After(cutoff) {
			continue
		}
		if parseErr != nil {
			l.log.Sugar().Debugw("Dropping garbled sent-log entry", "marker_id", key, "value", string(raw))
		}
		if err := l.kv.Delete(ctx, key); err == nil {
			purged++
		}
	}
	return purged, nil
}
