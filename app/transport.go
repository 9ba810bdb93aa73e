package app

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewTransport is the outbound RoundTripper shared by the push sender,
// the ops mailer and the importer. Wrapping them all through one
// transport keeps outbound traffic observable and stubbed in tests.
func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{base: http.DefaultTransport, log: log}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := tpt.base.RoundTrip(req)
	if err != nil {
		tpt.log.Sugar().Debugw("Outbound request failed", "url", req.URL.String(), "err", err)
		return resp, err
	}
	tpt.log.Sugar().Debugw("Outbound request", "url", req.URL.String(), "status", resp.StatusCode)
	return resp, nil
}
