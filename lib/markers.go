package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib/models"
	"go.uber.org/zap"
)

// MarkerRepository owns the markers keyspace.
type MarkerRepository struct {
	log *zap.Logger
	kv  kvstore.Store
}

func (r *MarkerRepository) Create(ctx context.Context, input *models.Marker) (*models.Marker, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.Timestamp == "" && input.Time == "" {
		input.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := r.put(ctx, input); err != nil {
		return nil, err
	}
	r.log.Sugar().Infof("Created marker id:%s", input.ID)
	return input, nil
}

func (r *MarkerRepository) Get(ctx context.Context, id string) (*models.Marker, error) {
	raw, err := r.kv.Get(ctx, id)
	if errors.Is(err, kvstore.ErrNoSuchKey) {
		return nil, fmt.Errorf("marker %s: %w", id, models.ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	marker := &models.Marker{}
	if err := json.Unmarshal(raw, marker); err != nil {
		return nil, fmt.Errorf("corrupt marker record %s: %w", id, err)
	}
	return marker, nil
}

// Update merges patch into the stored record. The id is immutable; a
// patch can never move a marker to another key.
func (r *MarkerRepository) Update(ctx context.Context, id string, patch *models.MarkerPatch) (*models.Marker, error) {
	marker, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	marker.Apply(patch)
	marker.ID = id
	if err := marker.Validate(); err != nil {
		return nil, err
	}
	if err := r.put(ctx, marker); err != nil {
		return nil, err
	}
	return marker, nil
}

// Delete is idempotent; removing an absent id is not an error.
func (r *MarkerRepository) Delete(ctx context.Context, id string) error {
	return r.kv.Delete(ctx, id)
}

func (r *MarkerRepository) ListAll(ctx context.Context) (models.Markers, error) {
	keys, err := r.kv.Keys(ctx)
	if err != nil {
		return nil, err
	}

	all := models.Markers{}
	for _, key := range keys {
		marker, err := r.Get(ctx, key)
		if errors.Is(err, models.ErrNotFound) {
			continue // deleted between list and get
		} else if err != nil {
			return nil, err
		}
		all[key] = marker
	}
	return all, nil
}

// ListRecentSince returns markers created after the cutoff. Markers
// whose creation time does not parse are excluded, not an error.
func (r *MarkerRepository) ListRecentSince(ctx context.Context, cutoff time.Time) (models.Markers, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	recent := models.Markers{}
	for id, marker := range all {
		if t, ok := marker.CreatedTime(); ok && t.After(cutoff) {
			recent[id] = marker
		}
	}
	return recent, nil
}

func (r *MarkerRepository) put(ctx context.Context, marker *models.Marker) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, marker.ID, raw)
}
