package domain

import (
	orderdomain "cakeshop-dispatch/internal/features/orders/domain"
)

// Topics group websocket subscribers by audience. Pilot-specific traffic goes
// to a per-pilot topic so one pilot never sees another's assignments.
const (
	TopicAdmins = "admins"
	TopicPilots = "pilots"
)

// PilotTopic returns the private topic for one pilot.
func PilotTopic(pilotID string) string {
	return "pilot_" + pilotID
}

// Event names are part of the websocket contract with the dashboards.
const (
	EventNewOrder       = "newOrder"
	EventOrdersUpdate   = "ordersUpdate"
	EventOrderClaimed   = "orderClaimed"
	EventOrderAssigned  = "orderAssigned"
	EventOrderReached   = "orderReached"
	EventOrderPickedUp  = "orderPickedUp"
	EventOrderDelivered = "orderDelivered"
)

// Event is the envelope every websocket message travels in.
type Event struct {
	// Name identifies the event type.
	Name string `json:"event"`
	// Payload is the event-specific body.
	Payload interface{} `json:"payload"`
}

// NewOrderPayload announces a freshly placed order to admins and pilots.
type NewOrderPayload struct {
	OrderID     string  `json:"orderId"`
	Buyer       string  `json:"buyer"`
	Location    string  `json:"location"`
	FinalAmount float64 `json:"finalAmount"`
	ItemCount   int     `json:"itemCount"`
}

// OrdersUpdatePayload carries a snapshot of the unclaimed pool.
type OrdersUpdatePayload struct {
	Orders []orderdomain.Order `json:"orders"`
}

// OrderClaimedPayload tells the pilot pool an order left the unclaimed pool.
type OrderClaimedPayload struct {
	OrderID   string `json:"orderId"`
	ClaimedBy string `json:"claimedBy"`
}

// OrderAssignedPayload delivers the full order to the claiming pilot's topic.
type OrderAssignedPayload struct {
	Order *orderdomain.Order `json:"order"`
}

// OrderProgressPayload reports a courier lifecycle step.
type OrderProgressPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// NewOrderEvent builds the admins/pilots announcement for a new order.
func NewOrderEvent(order *orderdomain.Order) Event {
	return Event{
		Name: EventNewOrder,
		Payload: NewOrderPayload{
			OrderID:     order.OrderID,
			Buyer:       order.Buyer,
			Location:    order.Location,
			FinalAmount: order.FinalAmount,
			ItemCount:   len(order.Items),
		},
	}
}

// ProgressEvent maps a courier lifecycle status onto its event name. The
// second return is false for statuses that have no dedicated event.
func ProgressEvent(order *orderdomain.Order) (Event, bool) {
	var name string
	switch order.Status {
	case orderdomain.StatusReachedPickup:
		name = EventOrderReached
	case orderdomain.StatusPickedUp:
		name = EventOrderPickedUp
	case orderdomain.StatusDelivered:
		name = EventOrderDelivered
	default:
		return Event{}, false
	}
	return Event{
		Name: name,
		Payload: OrderProgressPayload{
			OrderID: order.OrderID,
			Status:  string(order.Status),
		},
	}, true
}
