package lib

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib/models"
	"go.uber.org/zap"
)

// SubscriptionRepository owns the subscriptions keyspace. Records are
// keyed by a stable digest of their endpoint so that re-subscribing
// with the same endpoint overwrites the prior record.
type SubscriptionRepository struct {
	log *zap.Logger
	kv  kvstore.Store
}

func (r *SubscriptionRepository) Save(ctx context.Context, input *models.Subscription) (*models.Subscription, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	// The storage key is always the endpoint digest, even when the
	// caller picked its own id. Saving the same endpoint under
	// different ids would otherwise leave duplicate records behind.
	key := models.DigestEndpoint(input.Subscription.Endpoint)
	if input.ID == "" {
		input.ID = key
	}
	if input.CreatedAt == "" {
		input.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Put(ctx, key, raw); err != nil {
		return nil, err
	}
	r.log.Sugar().Infof("Saved subscription id:%s", input.ID)
	return input, nil
}

// RemoveByEndpoint is idempotent; removing a never-registered endpoint
// is a no-op.
func (r *SubscriptionRepository) RemoveByEndpoint(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return &models.ValidationError{Field: "endpoint", Reason: "must not be empty"}
	}
	return r.kv.Delete(ctx, models.DigestEndpoint(endpoint))
}

// Delete removes a subscription by its stored id. The dispatcher uses
// this to prune endpoints the push service reports as gone.
func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	return r.kv.Delete(ctx, id)
}

func (r *SubscriptionRepository) ListAll(ctx context.Context) (models.Subscriptions, error) {
	keys, err := r.kv.Keys(ctx)
	if err != nil {
		return nil, err
	}

	all := models.Subscriptions{}
	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if errors.Is(err, kvstore.ErrNoSuchKey) {
			continue
		} else if err != nil {
			return nil, err
		}

		sub := &models.Subscription{}
		if err := json.Unmarshal(raw, sub); err != nil {
			r.log.Sugar().Warnf("Skipping corrupt subscription record %s: %v", key, err)
			continue
		}
		all[key] = sub
	}
	return all, nil
}
