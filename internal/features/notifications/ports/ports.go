package ports

import (
	"context"

	"cakeshop-dispatch/internal/features/notifications/domain"
)

// Broadcaster publishes events to every websocket subscriber of a topic.
// Publishing never blocks: slow consumers have their messages dropped.
type Broadcaster interface {
	Publish(topic string, event domain.Event)
}

// PushTransport delivers one Web Push message to a subscription endpoint.
// Returns domain.ErrSubscriptionGone when the push service reports the
// endpoint as dead, so the caller can prune it.
type PushTransport interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error
}

// SubscriptionRepository stores browser push subscriptions.
type SubscriptionRepository interface {
	// Save registers a subscription, replacing any existing registration of
	// the same endpoint.
	Save(ctx context.Context, sub *domain.PushSubscription) error

	// FindByUser returns every subscription registered for the user.
	FindByUser(ctx context.Context, user string) ([]domain.PushSubscription, error)

	// Delete removes a subscription by id.
	Delete(ctx context.Context, id string) error
}
