// Package mqtt subscribes to the fleet's appliance topics and feeds order
// outcomes and check-ins into the service layer.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
	"github.com/fleetwarden/fleetwarden/internal/pkg/metrics"
	"github.com/fleetwarden/fleetwarden/pkg/log"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt/topic"
)

// Server wires the MQTT ingress for the engine. Subscriptions use a
// shared group so engine replicas split the message load.
type Server struct {
	client      mqtt.Client
	topics      *topic.Builder
	sharedGroup string
	svc         *service.Service
	logger      log.Logger
}

// NewServer builds the ingress over a started MQTT client.
func NewServer(client mqtt.Client, topics *topic.Builder, sharedGroup string, svc *service.Service, logger log.Logger) *Server {
	return &Server{
		client:      client,
		topics:      topics,
		sharedGroup: sharedGroup,
		svc:         svc,
		logger:      logger.WithName("mqtt-ingress"),
	}
}

// Start subscribes to the outcome and check-in topics.
func (s *Server) Start(ctx context.Context) error {
	outcomes := s.topics.OrderResultWildcard()
	checkins := s.topics.CheckinWildcard()
	if s.sharedGroup != "" {
		outcomes = s.topics.Shared(s.sharedGroup, outcomes)
		checkins = s.topics.Shared(s.sharedGroup, checkins)
	}
	if err := s.client.Subscribe(ctx, outcomes, 1, s.handleOutcome); err != nil {
		return err
	}
	return s.client.Subscribe(ctx, checkins, 1, s.handleCheckin)
}

func (s *Server) handleOutcome(ctx context.Context, t string, payload []byte) {
	var out core.Outcome
	if err := json.Unmarshal(payload, &out); err != nil {
		s.logger.Warn("Dropping malformed outcome payload", "topic", t, "error", err.Error())
		return
	}
	if out.ApplianceID == "" {
		out.ApplianceID = applianceFromTopic(t)
	}
	if err := s.svc.IngestOutcome(ctx, out); err != nil {
		s.logger.Error(err, "Failed to ingest outcome", "topic", t, "order", out.OrderID)
	}
}

func (s *Server) handleCheckin(ctx context.Context, t string, payload []byte) {
	var c core.Checkin
	if err := json.Unmarshal(payload, &c); err != nil {
		s.logger.Warn("Dropping malformed check-in payload", "topic", t, "error", err.Error())
		return
	}
	if c.ApplianceID == "" {
		c.ApplianceID = applianceFromTopic(t)
	}
	if err := s.svc.HandleCheckin(ctx, c); err != nil {
		s.logger.Error(err, "Failed to handle check-in", "topic", t, "appliance", c.ApplianceID)
		return
	}
	metrics.CheckinsTotal.Inc()
}

// applianceFromTopic falls back to the topic's last segment when the
// payload does not name the appliance.
func applianceFromTopic(t string) string {
	parts := strings.Split(t, "/")
	return parts[len(parts)-1]
}
