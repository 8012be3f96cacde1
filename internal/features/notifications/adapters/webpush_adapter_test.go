package adapters

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"cakeshop-dispatch/internal/core/config"
	"cakeshop-dispatch/internal/features/notifications/domain"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPushTransport(t *testing.T) *WebPushTransport {
	t.Helper()
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	return NewWebPushTransport(config.PushConfig{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		VAPIDSubject:    "mailto:test@cakeshop.local",
		TimeoutSeconds:  5,
	})
}

// browserSubscription builds a subscription with a real P-256 key pair so the
// payload encryption succeeds.
func browserSubscription(t *testing.T, endpoint string) *domain.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &domain.PushSubscription{
		ID:       "sub-1",
		Endpoint: endpoint,
		Keys: domain.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
		User: "buyer-1",
	}
}

func TestWebPushTransport_Send(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	transport := newPushTransport(t)
	sub := browserSubscription(t, srv.URL)

	err := transport.Send(context.Background(), sub, []byte(`{"event":"ordersUpdate"}`))
	require.NoError(t, err)
	assert.Contains(t, gotAuth, "vapid")
}

func TestWebPushTransport_Send_Gone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	transport := newPushTransport(t)
	sub := browserSubscription(t, srv.URL)

	err := transport.Send(context.Background(), sub, []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrSubscriptionGone)
}

func TestWebPushTransport_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	transport := newPushTransport(t)
	sub := browserSubscription(t, srv.URL)

	err := transport.Send(context.Background(), sub, []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSubscriptionGone)
}

func TestWebPushTransport_Send_BadKeys(t *testing.T) {
	transport := newPushTransport(t)
	sub := &domain.PushSubscription{
		Endpoint: "https://push.example/ep",
		Keys:     domain.SubscriptionKeys{P256dh: "not-a-key", Auth: "nope"},
	}

	err := transport.Send(context.Background(), sub, []byte(`{}`))
	assert.Error(t, err)
}
