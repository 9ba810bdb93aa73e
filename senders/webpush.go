package senders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/ptvalert/ptvalert/lib/models"
)

type webpushSender struct {
	base
}

// Send delivers the payload via the browser-vendor push service,
// signed with the configured VAPID keys. A 404/410 response means the
// endpoint is permanently gone; anything else non-2xx is transient.
func (s *webpushSender) Send(ctx context.Context, sub *models.Subscription, payload []byte) error {
	timeout := time.Duration(s.cfg.PushTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := &webpush.Subscription{
		Endpoint: sub.Subscription.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Subscription.Keys.P256dh,
			Auth:   sub.Subscription.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
		HTTPClient:      &http.Client{Transport: s.transport},
		Subscriber:      s.cfg.VAPID.Subject,
		VAPIDPublicKey:  s.cfg.VAPID.PublicKey,
		VAPIDPrivateKey: s.cfg.VAPID.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%s responded %d: %w", sub.Subscription.Endpoint, resp.StatusCode, models.ErrEndpointGone)
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service responded %d", resp.StatusCode)
	}
	return nil
}
