package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/lib/models"
	"github.com/ptvalert/ptvalert/senders"
	"go.uber.org/zap"
)

// Dispatcher formats notification payloads and fans them out to every
// current subscription. It prunes subscriptions whose endpoints the
// push service reports as gone.
type Dispatcher struct {
	cfg     *config.Config
	log     *zap.Logger
	subs    *SubscriptionRepository
	senders senders.Registry
}

type DispatchSummary struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Pruned    int `json:"pruned"`
	Failed    int `json:"failed"`
}

func (d *Dispatcher) BuildPayload(marker *models.Marker) *models.Payload {
	title := strings.TrimSpace(marker.Title)
	if title == "" {
		title = models.DefaultPayloadTitle
	}
	body := strings.TrimSpace(marker.Description)
	if body == "" {
		body = models.DefaultPayloadBody
	}

	return &models.Payload{
		Title: title,
		Body:  body,
		Icon:  "/icons/icon-192.png",
		Badge: "/icons/badge-72.png",
		Data: models.PayloadData{
			URL:      fmt.Sprintf("%s/?marker=%s", d.cfg.ServerDNS, marker.ID),
			MarkerID: marker.ID,
			SentAt:   time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// DispatchToAll delivers the payload to each subscription concurrently
// and independently; one slow or failing endpoint never blocks the
// rest, and all outcomes are settled before returning. Transient
// failures are logged and dropped for this cycle.
func (d *Dispatcher) DispatchToAll(ctx context.Context, payload *models.Payload, subs models.Subscriptions) *DispatchSummary {
	summary := &DispatchSummary{Attempted: len(subs)}

	sender, ok := d.senders["webpush"]
	if !ok {
		d.log.Sugar().Error("No webpush sender registered")
		return summary
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		d.log.Sugar().Errorw("Failed to encode payload", "err", err)
		return summary
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for id, sub := range subs {
		wg.Add(1)

		go func(id string, sub *models.Subscription) {
			defer wg.Done()
			err := sender.Send(ctx, sub, raw)

			if errors.Is(err, models.ErrEndpointGone) {
				if derr := d.subs.Delete(ctx, id); derr != nil {
					d.log.Sugar().Errorw("Failed to prune dead subscription", "id", id, "err", derr)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Delivered++
			case errors.Is(err, models.ErrEndpointGone):
				summary.Pruned++
			default:
				summary.Failed++
				d.log.Sugar().Infow("Push delivery failed", "id", id, "err", err)
			}
		}(id, sub)
	}
	wg.Wait()

	return summary
}
