package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/features/notifications/domain"
	"cakeshop-dispatch/internal/features/notifications/ports"
	orderdomain "cakeshop-dispatch/internal/features/orders/domain"

	"go.uber.org/zap"
)

// Fanout turns order lifecycle events into websocket broadcasts and buyer
// push notifications. Every method is fire-and-forget: the order mutation
// that produced the event never waits on delivery and never sees its errors.
type Fanout struct {
	hub         ports.Broadcaster
	push        ports.PushTransport
	subs        ports.SubscriptionRepository
	pushTimeout time.Duration
	wg          sync.WaitGroup
}

// NewFanout creates a new Fanout. push may be nil when Web Push is not
// configured; buyer notifications are then skipped.
func NewFanout(hub ports.Broadcaster, push ports.PushTransport, subs ports.SubscriptionRepository, pushTimeout time.Duration) *Fanout {
	if pushTimeout <= 0 {
		pushTimeout = 10 * time.Second
	}
	return &Fanout{
		hub:         hub,
		push:        push,
		subs:        subs,
		pushTimeout: pushTimeout,
	}
}

// Drain blocks until every in-flight delivery finishes. Used on shutdown and
// in tests.
func (f *Fanout) Drain() {
	f.wg.Wait()
}

// OrderCreated announces a new order to admins and the pilot pool.
func (f *Fanout) OrderCreated(order *orderdomain.Order) {
	event := domain.NewOrderEvent(order)
	f.hub.Publish(domain.TopicAdmins, event)
	f.hub.Publish(domain.TopicPilots, event)
}

// UnclaimedSnapshot pushes the current unclaimed pool to the pilot topic.
func (f *Fanout) UnclaimedSnapshot(orders []orderdomain.Order) {
	f.hub.Publish(domain.TopicPilots, domain.Event{
		Name:    domain.EventOrdersUpdate,
		Payload: domain.OrdersUpdatePayload{Orders: orders},
	})
}

// OrderClaimed tells admins and the pilot pool the order is taken, and hands
// the full order to the claiming pilot's private topic.
func (f *Fanout) OrderClaimed(order *orderdomain.Order) {
	claimed := domain.Event{
		Name: domain.EventOrderClaimed,
		Payload: domain.OrderClaimedPayload{
			OrderID:   order.OrderID,
			ClaimedBy: order.ClaimedBy,
		},
	}
	f.hub.Publish(domain.TopicAdmins, claimed)
	f.hub.Publish(domain.TopicPilots, claimed)

	if order.ClaimedBy != "" {
		f.hub.Publish(domain.PilotTopic(order.ClaimedBy), domain.Event{
			Name:    domain.EventOrderAssigned,
			Payload: domain.OrderAssignedPayload{Order: order},
		})
	}
}

// CourierProgress reports a lifecycle step to admins and the holding pilot.
// Statuses without a dedicated event are ignored.
func (f *Fanout) CourierProgress(order *orderdomain.Order) {
	event, ok := domain.ProgressEvent(order)
	if !ok {
		return
	}

	f.hub.Publish(domain.TopicAdmins, event)
	if order.ClaimedBy != "" {
		f.hub.Publish(domain.PilotTopic(order.ClaimedBy), event)
	}
}

// BuyerStatusPush delivers a status-change push to every subscription the
// buyer registered. Delivery runs detached with its own deadline; endpoints
// the push service reports as gone are pruned.
func (f *Fanout) BuyerStatusPush(order *orderdomain.Order) {
	if f.push == nil || f.subs == nil || order.Buyer == "" {
		return
	}

	// statuses with a dedicated progress event keep the same name on the
	// push channel as on the websocket channel
	event, ok := domain.ProgressEvent(order)
	if !ok {
		event = domain.Event{
			Name: domain.EventOrdersUpdate,
			Payload: domain.OrderProgressPayload{
				OrderID: order.OrderID,
				Status:  string(order.Status),
			},
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Get().Error("Failed to encode push payload",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		return
	}

	buyer := order.Buyer
	orderID := order.OrderID

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.pushTimeout)
		defer cancel()

		subs, err := f.subs.FindByUser(ctx, buyer)
		if err != nil {
			logger.Get().Warn("Failed to load push subscriptions",
				zap.String("buyer", buyer),
				zap.Error(err),
			)
			return
		}

		for i := range subs {
			sub := subs[i]
			if err := f.push.Send(ctx, &sub, payload); err != nil {
				if errors.Is(err, domain.ErrSubscriptionGone) {
					if delErr := f.subs.Delete(ctx, sub.ID); delErr != nil {
						logger.Get().Warn("Failed to prune dead subscription",
							zap.String("subscription_id", sub.ID),
							zap.Error(delErr),
						)
					}
					continue
				}
				logger.Get().Warn("Push delivery failed",
					zap.String("order_id", orderID),
					zap.String("subscription_id", sub.ID),
					zap.Error(err),
				)
			}
		}
	}()
}
