package hails

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// DeliveryRequest is the Pub/Sub message triggering one delivery
// attempt for a hail.
type DeliveryRequest struct {
	HailID string `json:"hail_id"`
}

// PubSubNotifier publishes delivery requests on the hail-delivery
// topic. It satisfies Notifier.
type PubSubNotifier struct {
	publisher *gcppubsub.Publisher
}

// NewPubSubNotifier wraps a hail-delivery topic publisher.
func NewPubSubNotifier(publisher *gcppubsub.Publisher) *PubSubNotifier {
	return &PubSubNotifier{publisher: publisher}
}

// RequestDelivery publishes the hail ID and waits for the broker's
// acknowledgement so creation fails loudly when the trigger is lost.
func (n *PubSubNotifier) RequestDelivery(ctx context.Context, hailID string) error {
	raw, err := json.Marshal(DeliveryRequest{HailID: hailID})
	if err != nil {
		return fmt.Errorf("encode delivery request: %w", err)
	}
	result := n.publisher.Publish(ctx, &gcppubsub.Message{
		Data:       raw,
		Attributes: map[string]string{"hail_id": hailID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish delivery request: %w", err)
	}
	return nil
}
