package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env          string `env:"ENVIRONMENT"`
	ServerPort   int    `env:"PORT" envDefault:"8080"`
	ServerDNS    string `env:"SERVER_DNS" envDefault:"http://localhost:8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"ptvalert.sqlite"`

	VAPID struct {
		PublicKey  string `env:"VAPID_PUBLIC_KEY"`
		PrivateKey string `env:"VAPID_PRIVATE_KEY"`
		Subject    string `env:"VAPID_SUBJECT" envDefault:"mailto:ops@ptvalert.app"`
	}

	Sweep struct {
		Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
		Window   time.Duration `env:"SWEEP_WINDOW" envDefault:"24h"`
	}

	PushTimeoutSecs int `env:"PUSH_TIMEOUT_SECS" envDefault:"10"`

	OpsEmail string `env:"OPS_EMAIL"`
	Mailgun  struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"30"`
	}

	log *zap.Logger
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panic(err)
	}

	if !cfg.PushConfigured() {
		log.Sugar().Info("VAPID keys are not fully configured; push delivery will fail until they are set")
	}
	if !cfg.OpsMailConfigured() {
		log.Sugar().Info("Ops email is not configured; sweep digests are disabled")
	}
	return cfg
}

// PushConfigured reports whether both VAPID keys are present. The
// /api/test-config endpoint exposes this to clients.
func (cfg *Config) PushConfigured() bool {
	return cfg.VAPID.PublicKey != "" && cfg.VAPID.PrivateKey != ""
}

func (cfg *Config) OpsMailConfigured() bool {
	return cfg.OpsEmail != "" && cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != ""
}
