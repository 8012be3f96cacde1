package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cakeshop-dispatch/internal/core/config"
	"cakeshop-dispatch/internal/core/httpclient"
	"cakeshop-dispatch/internal/features/notifications/domain"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushTransport delivers Web Push messages signed with the VAPID key pair.
type WebPushTransport struct {
	cfg    config.PushConfig
	client *http.Client
}

// NewWebPushTransport creates a new WebPushTransport.
func NewWebPushTransport(cfg config.PushConfig) *WebPushTransport {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebPushTransport{
		cfg:    cfg,
		client: httpclient.NewClient(timeout),
	}
}

// Send delivers one push message. A 404 or 410 from the push service means
// the browser dropped the subscription; the caller should prune it.
func (t *WebPushTransport) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.cfg.VAPIDSubject,
		VAPIDPublicKey:  t.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: t.cfg.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("push delivery failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return domain.ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service rejected delivery: status %d", resp.StatusCode)
	}
	return nil
}
