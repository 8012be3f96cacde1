package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSubscriptionNotFound is returned when the subscription does not exist.
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	// ErrSubscriptionGone is returned when the push service reports the
	// endpoint as permanently gone. The subscription should be removed.
	ErrSubscriptionGone = errors.New("push subscription gone")
	// ErrInvalidSubscription is returned for a subscription missing its
	// endpoint or encryption keys.
	ErrInvalidSubscription = errors.New("invalid push subscription")
)

// SubscriptionKeys are the browser-generated encryption keys of a Web Push
// subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is a browser push endpoint registered by a buyer or admin.
type PushSubscription struct {
	// ID is the internal subscription identifier.
	ID string `json:"id"`
	// Endpoint is the push service URL, unique per subscription.
	Endpoint string `json:"endpoint"`
	// Keys are the encryption keys the push payload is sealed with.
	Keys SubscriptionKeys `json:"keys"`
	// User is the account the subscription belongs to, empty for admins.
	User string `json:"user,omitempty"`
	// CreatedAt is when the subscription was registered.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required to deliver a push.
func (s *PushSubscription) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidSubscription)
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return fmt.Errorf("%w: encryption keys are required", ErrInvalidSubscription)
	}
	return nil
}
