package senders

import (
	"context"
	"net/http"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender delivers a serialized notification payload to one
// subscription's platform endpoint.
type Sender interface {
	Send(ctx context.Context, sub *models.Subscription, payload []byte) error
}

type Registry map[string]Sender

func NewRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	return Registry{
		"webpush": &webpushSender{base},
	}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
