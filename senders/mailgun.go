package senders

import (
	"context"
	"net/http"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/ptvalert/ptvalert/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// OpsMailer emails sweep digests to the ops address. Disabled unless
// OPS_EMAIL and the Mailgun credentials are configured.
type OpsMailer struct {
	base
}

func NewOpsMailer(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) *OpsMailer {
	return &OpsMailer{base{log, cfg, transport}}
}

func (m *OpsMailer) Enabled() bool {
	return m.cfg.OpsMailConfigured()
}

func (m *OpsMailer) Send(ctx context.Context, subject, body string) (string, error) {
	mg := mailgun.NewMailgun(m.cfg.Mailgun.Domain, m.cfg.Mailgun.APIKey)
	mg.Client().Transport = m.transport

	// Create message with empty body first.
	message := mg.NewMessage(m.cfg.Mailgun.SenderFrom, subject, "", m.cfg.OpsEmail)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml(body)

	timeout := time.Duration(m.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	return id, err
}
