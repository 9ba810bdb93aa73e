package lib

import (
	"context"
	"net/http"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib/models"
	"github.com/ptvalert/ptvalert/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service composes the repositories, dispatcher and importer over
// their KV namespaces.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	Markers       *MarkerRepository
	Subscriptions *SubscriptionRepository
	Admins        *AdminFlags
	Dispatcher    *Dispatcher
	Importer      *Importer
}

func NewService(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	kv *kvstore.Namespaces,
	registry senders.Registry,
	transport http.RoundTripper,
) *Service {
	markers := &MarkerRepository{log: log, kv: kv.Markers}
	subs := &SubscriptionRepository{log: log, kv: kv.Subscriptions}

	return &Service{
		cfg:           cfg,
		log:           log,
		Markers:       markers,
		Subscriptions: subs,
		Admins:        &AdminFlags{kv: kv.Admins},
		Dispatcher:    &Dispatcher{cfg: cfg, log: log, subs: subs, senders: registry},
		Importer:      &Importer{log: log, markers: markers, subs: subs, transport: transport},
	}
}

// Notify builds the marker's payload and dispatches it to every
// current subscription, reporting the aggregate outcome.
func (svc *Service) Notify(ctx context.Context, marker *models.Marker) (*DispatchSummary, error) {
	subs, err := svc.Subscriptions.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	payload := svc.Dispatcher.BuildPayload(marker)
	summary := svc.Dispatcher.DispatchToAll(ctx, payload, subs)
	svc.log.Sugar().Infow("Dispatched notification",
		"marker_id", marker.ID,
		"attempted", summary.Attempted,
		"delivered", summary.Delivered,
		"pruned", summary.Pruned,
		"failed", summary.Failed,
	)
	return summary, nil
}
