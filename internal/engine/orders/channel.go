// Package orders delivers engine orders to appliances over MQTT.
package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt"
	"github.com/fleetwarden/fleetwarden/pkg/mqtt/topic"
)

// Channel publishes orders to each appliance's order topic at QoS 1.
type Channel struct {
	client mqtt.Client
	topics *topic.Builder
}

var _ core.OrderChannel = (*Channel)(nil)

// NewChannel builds an order channel over a connected MQTT client.
func NewChannel(client mqtt.Client, topics *topic.Builder) *Channel {
	return &Channel{client: client, topics: topics}
}

// Send publishes the order to the appliance's order topic. Delivery to
// the appliance itself is asynchronous; the broker ack is awaited here.
func (c *Channel) Send(ctx context.Context, applianceID string, order core.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	if err := c.client.Publish(ctx, c.topics.Order(applianceID), 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish order %s: %w", order.ID, err)
	}
	return nil
}
