package main

import (
	"net/http"
	"os"
	"time"

	"github.com/ptvalert/ptvalert/app"
	"github.com/ptvalert/ptvalert/config"
	"github.com/ptvalert/ptvalert/kvstore"
	"github.com/ptvalert/ptvalert/lib"
	"github.com/ptvalert/ptvalert/lib/sweeper"
	"github.com/ptvalert/ptvalert/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(kvstore.NewDatabase),
		fx.Provide(kvstore.NewNamespaces),
		fx.Provide(app.NewTransport),
		fx.Provide(senders.NewRegistry),
		fx.Provide(senders.NewOpsMailer),
		fx.Provide(lib.NewService),
		fx.Provide(sweeper.NewSweeper),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
		fx.Invoke(func(*sweeper.Sweeper) {}),
	).Run()
}
