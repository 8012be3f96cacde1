package adapters

import (
	"encoding/json"
	"strings"
	"sync"

	"cakeshop-dispatch/internal/core/logger"
	"cakeshop-dispatch/internal/features/notifications/domain"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// clientBuffer bounds the per-connection send queue. A consumer that falls
// this far behind starts losing messages instead of stalling the publisher.
const clientBuffer = 16

type wsClient struct {
	send chan []byte
}

// WebsocketHub fans events out to websocket subscribers grouped by topic.
// Publishing is non-blocking; messages to a full client queue are dropped.
type WebsocketHub struct {
	mu     sync.RWMutex
	topics map[string]map[*wsClient]struct{}
}

// NewWebsocketHub creates a new WebsocketHub.
func NewWebsocketHub() *WebsocketHub {
	return &WebsocketHub{
		topics: make(map[string]map[*wsClient]struct{}),
	}
}

// Publish sends the event to every subscriber of the topic.
func (h *WebsocketHub) Publish(topic string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Get().Error("Failed to encode websocket event",
			zap.String("event", event.Name),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic] {
		select {
		case client.send <- data:
		default:
			logger.Get().Debug("Dropping websocket message for slow consumer",
				zap.String("topic", topic),
				zap.String("event", event.Name),
			)
		}
	}
}

// SubscriberCount returns the number of live subscribers on a topic.
func (h *WebsocketHub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *WebsocketHub) register(topics []string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*wsClient]struct{})
		}
		h.topics[topic][client] = struct{}{}
	}
}

// unregister removes the client from every topic and closes its queue.
// Taking the write lock here excludes concurrent Publish sends, so the close
// cannot race a send.
func (h *WebsocketHub) unregister(topics []string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		delete(h.topics[topic], client)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	close(client.send)
}

// connTopics resolves the topics a connection subscribes to from its query:
// ?topics=admins,pilots joins shared topics, ?pilot=<id> joins the pilot's
// private topic.
func connTopics(conn *websocket.Conn) []string {
	var topics []string
	for _, topic := range strings.Split(conn.Query("topics"), ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	if pilot := conn.Query("pilot"); pilot != "" {
		topics = append(topics, domain.PilotTopic(pilot))
	}
	return topics
}

// Handle serves one websocket connection until the peer disconnects.
func (h *WebsocketHub) Handle(conn *websocket.Conn) {
	topics := connTopics(conn)
	if len(topics) == 0 {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "no topics requested"))
		conn.Close()
		return
	}

	client := &wsClient{send: make(chan []byte, clientBuffer)}
	h.register(topics, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// inbound traffic is ignored; the read loop only detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(topics, client)
	<-done
	conn.Close()
}
