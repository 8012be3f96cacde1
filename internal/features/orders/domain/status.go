package domain

import "errors"

// Status represents the lifecycle state of an order.
// The values are part of the external API contract and must not be renamed;
// the mixed casing of Processing is preserved because downstream dashboards
// match on the exact strings.
type Status string

const (
	// StatusPending means the order awaits a pilot claim.
	StatusPending Status = "pending"
	// StatusClaimed means a pilot holds an exclusive claim lease on the order.
	StatusClaimed Status = "claimed"
	// StatusProcessing means the bakery is preparing the order.
	StatusProcessing Status = "Processing"
	// StatusReachedPickup means the pilot has arrived at the pickup point.
	StatusReachedPickup Status = "reached_pickup"
	// StatusPickedUp means the pilot has collected the order.
	StatusPickedUp Status = "picked_up"
	// StatusShipped means the order is on its way to the buyer.
	StatusShipped Status = "shipped"
	// StatusDelivered means the order reached the buyer. Terminal.
	StatusDelivered Status = "delivered"
	// StatusCancelled means the order was cancelled before delivery. Terminal.
	StatusCancelled Status = "cancelled"
)

var (
	// ErrUnknownStatus is returned for a status value outside the closed set.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrInvalidTransition is returned for an illegal status move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOrderNotClaimed is returned when a transition requires a claim holder
	// and the order has none.
	ErrOrderNotClaimed = errors.New("order is not claimed")
)

// courierTransitions is the legal transition table for the courier lifecycle.
// cancelled is reachable from every non-terminal state.
var courierTransitions = map[Status][]Status{
	StatusPending:       {StatusClaimed, StatusCancelled},
	StatusClaimed:       {StatusProcessing, StatusCancelled},
	StatusProcessing:    {StatusReachedPickup, StatusCancelled},
	StatusReachedPickup: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:      {StatusShipped, StatusCancelled},
	StatusShipped:       {StatusDelivered, StatusCancelled},
}

// adminStatuses is the reduced set an admin may force an order into.
// This is a separate authority for administrative correction: it bypasses the
// claim guard and the step-by-step courier table, but still cannot leave a
// terminal state.
var adminStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// claimGuarded lists the target states that require a claim holder.
var claimGuarded = map[Status]struct{}{
	StatusReachedPickup: {},
	StatusPickedUp:      {},
	StatusDelivered:     {},
}

// ParseStatus validates a raw status string against the closed set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusClaimed, StatusProcessing, StatusReachedPickup,
		StatusPickedUp, StatusShipped, StatusDelivered, StatusCancelled:
		return s, nil
	}
	return "", ErrUnknownStatus
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// RequiresClaim reports whether entering s requires a non-empty claim holder.
func (s Status) RequiresClaim() bool {
	_, ok := claimGuarded[s]
	return ok
}

// AdminAssignable reports whether an admin may force an order into s.
func (s Status) AdminAssignable() bool {
	_, ok := adminStatuses[s]
	return ok
}

// CanTransition reports whether the courier lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range courierTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every state from which the courier lifecycle may
// enter target. Repositories use this as the predicate of the atomic
// conditional status update.
func TransitionSources(target Status) []Status {
	var sources []Status
	for from, nexts := range courierTransitions {
		for _, next := range nexts {
			if next == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// AdminTransitionSources returns every state from which an admin may force
// target: any non-terminal state.
func AdminTransitionSources() []Status {
	return []Status{
		StatusPending, StatusClaimed, StatusProcessing,
		StatusReachedPickup, StatusPickedUp, StatusShipped,
	}
}
