package hails

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

// Deliverer performs one delivery attempt for a hail.
type Deliverer interface {
	Deliver(ctx context.Context, hailID string) error
}

// DeliveryConsumer watches the hail-delivery subscription and pushes
// each freshly created hail to its operator's endpoint.
type DeliveryConsumer struct {
	deliverer    Deliverer
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewDeliveryConsumer builds a hail delivery consumer.
func NewDeliveryConsumer(deliverer Deliverer, subscription *pubsub.Subscriber, logg *logger.Logger) (*DeliveryConsumer, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("hail delivery subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &DeliveryConsumer{
		deliverer:    deliverer,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *DeliveryConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Undecodable
// messages are acked since redelivery cannot fix them; delivery errors
// are nacked so the broker retries.
func (c *DeliveryConsumer) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var request DeliveryRequest
	if err := json.Unmarshal(msg.Data, &request); err != nil {
		c.logg.Error(logCtx, "decode delivery request", err)
		return true
	}
	if request.HailID == "" {
		c.logg.Warn(logCtx, "delivery request without hail id")
		return true
	}

	logCtx = c.logg.WithHailID(logCtx, request.HailID)
	if err := c.deliverer.Deliver(logCtx, request.HailID); err != nil {
		c.logg.Error(logCtx, "hail delivery attempt failed", err)
		return false
	}
	return true
}
