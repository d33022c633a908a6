package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
	"github.com/fleetwarden/fleetwarden/internal/engine/orders"
	"github.com/fleetwarden/fleetwarden/internal/engine/scheduler"
	enginehttp "github.com/fleetwarden/fleetwarden/internal/engine/server/http"
	enginemqtt "github.com/fleetwarden/fleetwarden/internal/engine/server/mqtt"
	"github.com/fleetwarden/fleetwarden/internal/engine/sqlite"
	"github.com/fleetwarden/fleetwarden/internal/engine/storage"
	"github.com/fleetwarden/fleetwarden/pkg/log"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt/topic"
)

// Server is the assembled engine process.
type Server struct {
	cfg    *Config
	logger log.Logger

	store      *sqlite.Store
	mqttClient mqtt.Client
	svc        *service.Service
	httpServer *enginehttp.Server
	ingress    *enginemqtt.Server
	sched      *scheduler.Scheduler
	connected  atomic.Bool
}

// NewServer builds the engine from its configuration.
func NewServer(cfg *Config, logger log.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger.WithName("engine")}

	db, err := sqlite.Open(cfg.Sqlite.Path)
	if err != nil {
		return nil, err
	}
	s.store = sqlite.NewStore(db)

	s.mqttClient, err = mqtt.NewClient(cfg.MQTT.ToClientConfig())
	if err != nil {
		s.store.Close()
		return nil, err
	}
	topics := topic.NewBuilder(cfg.MQTT.TopicRoot)

	artifacts, err := storage.NewMinioStore(cfg.S3)
	if err != nil {
		s.store.Close()
		return nil, err
	}

	s.svc = service.NewService(
		s.store,
		orders.NewChannel(s.mqttClient, topics),
		artifacts,
		service.Config{
			OrderTTL:            cfg.Scheduler.OrderTTL,
			MaxDispatchAttempts: cfg.Scheduler.MaxDispatchAttempts,
		},
		logger,
	)

	s.ingress = enginemqtt.NewServer(s.mqttClient, topics, cfg.MQTT.SharedGroup, s.svc, logger)
	s.httpServer = enginehttp.NewServer(cfg.HTTP, s.svc, s.connected.Load, logger)
	s.sched = scheduler.New(s.svc, cfg.Scheduler.TickInterval, logger)
	return s, nil
}

// Run starts the transports and the scheduler, then blocks until the
// context is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	defer s.store.Close()

	if err := s.mqttClient.Start(ctx); err != nil {
		return err
	}
	defer s.mqttClient.Disconnect(context.Background())

	if err := s.mqttClient.AwaitConnection(ctx); err != nil {
		return err
	}
	s.connected.Store(true)
	if err := s.ingress.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("MQTT ingress started", "broker", s.cfg.MQTT.Broker)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpServer.Run(gctx) })
	g.Go(func() error { return s.sched.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
