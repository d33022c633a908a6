// Package app builds the warden engine command.
package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fleetwarden/fleetwarden/cmd/warden-engine/app/options"
	"github.com/fleetwarden/fleetwarden/internal/engine"
	"github.com/fleetwarden/fleetwarden/pkg/app"
	"github.com/fleetwarden/fleetwarden/pkg/log"
)

const commandDesc = `The warden engine orchestrates staged software rollouts across a fleet of
edge appliances. It selects appliances per stage, dispatches update orders
over MQTT, ingests outcome reports and check-ins, and pauses or rolls a
release back when the observed failure rate breaches the rollout's policy.`

// NewApp builds the warden-engine application.
func NewApp(name string) *app.App {
	opts := options.NewOptions()
	return app.NewApp(name, "Fleet rollout orchestration engine",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithSilence(),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

func run(opts *options.Options) error {
	log.Init(opts.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := engine.NewServer(opts.EngineConfig(), log.Std())
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
