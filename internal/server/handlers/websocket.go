// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trendcraft/internal/adapter/events"
	"trendcraft/internal/logging"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the router
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamMessage is what a trend stream client receives
type streamMessage struct {
	Type    string          `json:"type"`
	Subject string          `json:"subject"`
	Event   json.RawMessage `json:"event,omitempty"`
	Time    time.Time       `json:"time"`
}

// streamClient relays discovery events to one WebSocket connection
type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	sub    events.Subscription
	config WebSocketConfig
	logger logging.Logger
}

// TrendStreamHandler streams discovery events published under topic.
// Optional source and category query parameters narrow the subscription.
func TrendStreamHandler(bus events.Bus, topic string, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, category := r.URL.Query().Get("source"), r.URL.Query().Get("category")
		pattern := StreamSubject(topic, source, category)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Failed to upgrade to WebSocket", logging.Error(err))
			return
		}

		c := &streamClient{
			conn:   conn,
			send:   make(chan []byte, 64),
			done:   make(chan struct{}),
			config: DefaultWebSocketConfig(),
			logger: logger.With(logging.String("subject", pattern)),
		}

		sub, err := bus.Subscribe(pattern, c.deliver)
		if err != nil {
			c.logger.Error("Failed to subscribe to discovery events", logging.Error(err))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"))
			_ = conn.Close()
			return
		}
		c.sub = sub

		welcome, _ := json.Marshal(streamMessage{Type: "welcome", Subject: pattern, Time: time.Now().UTC()})
		c.send <- welcome

		go c.writePump()
		go c.readPump()

		c.logger.Debug("Trend stream connected", logging.String("remote", r.RemoteAddr))
	}
}

// StreamSubject builds the subscription pattern; empty parts match anything
func StreamSubject(topic, source, category string) string {
	if source == "" && category == "" {
		return topic + ".discovered.>"
	}
	if source == "" {
		source = "*"
	}
	if category == "" {
		category = "*"
	}
	return fmt.Sprintf("%s.discovered.%s.%s", topic, source, category)
}

// deliver runs on the bus goroutine and never blocks it
func (c *streamClient) deliver(subject string, data []byte) {
	msg, err := json.Marshal(streamMessage{
		Type:    "discovery",
		Subject: subject,
		Event:   json.RawMessage(data),
		Time:    time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("Dropping undecodable event", logging.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("Trend stream client too slow, dropping event")
	}
}

// readPump only services control frames; clients send nothing
func (c *streamClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("WebSocket error", logging.Error(err))
			}
			return
		}
	}
}

// writePump pumps queued events to the WebSocket connection
func (c *streamClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close unsubscribes and closes the connection once
func (c *streamClient) close() {
	c.once.Do(func() {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to unsubscribe", logging.Error(err))
		}
		close(c.done)
		_ = c.conn.Close()
		c.logger.Debug("Trend stream closed")
	})
}
