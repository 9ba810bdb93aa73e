package lib

import (
	"context"
	"errors"
	"strings"

	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib/models"
)

// AdminFlags marks users with elevated privilege. Flags are only ever
// set; there is no removal path.
type AdminFlags struct {
	kv kvstore.Store
}

func (a *AdminFlags) Set(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &models.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	return a.kv.Put(ctx, userID, []byte("true"))
}

func (a *AdminFlags) IsAdmin(ctx context.Context, userID string) (bool, error) {
	_, err := a.kv.Get(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, kvstore.ErrNoSuchKey):
		return false, nil
	default:
		return false, err
	}
}
