package hub

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"Flort/internal/event"
	"Flort/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one connected dashboard
type Client struct {
	ID      string
	conn    *websocket.Conn
	manager *Hub
	logger  *zap.Logger
	egress  chan event.Envelope

	// nil means every topic
	topics   map[string]bool
	topicsMu sync.RWMutex

	// cancel or stop goroutine
	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

var (
	// tuning parameters
	writeWait         = 10 * time.Second    // time allowed to write a message to the peer
	pongWait          = 60 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval      = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize    = 4 * 1024            // max inbound message size, only subscribe frames are expected
	sendBufSize       = 256                 // per-connection outbound buffer size
	frameBufSize      = 1024                // frames waiting for fan-out
	workerPoolSize    = 4                   // number of workers to process inbound messages
	sendTimeout       = 2 * time.Second     // timeout for enqueuing outbound messages
	kickOnFull        = true                // when true, disconnect client when egress is full
	registerTimeout   = 5 * time.Second     // timeout for client registration
	unregisterTimeout = 5 * time.Second     // timeout for client unregistration
	inboundTimeout    = 500 * time.Millisecond
)

// RegisterClient creates a new client with a single WebSocket connection
func RegisterClient(conn *websocket.Conn, h *Hub, topics []string) *Client {
	ctx, cancel := context.WithCancel(h.ctx)
	clientID := uuid.New().String()

	client := &Client{
		ID:         clientID,
		conn:       conn,
		manager:    h,
		logger:     h.logger.With(zap.String("client_id", clientID)),
		egress:     make(chan event.Envelope, sendBufSize),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}
	client.SetTopics(topics)

	select {
	case h.register <- client:
		go client.ReadMessages()
		go client.WriteMessages()
		return client
	case <-time.After(registerTimeout):
		client.logger.Warn("failed to register client: timeout")
	case <-h.ctx.Done():
	}
	cancel()
	_ = conn.Close()
	return nil
}

func (c *Client) ReadMessages() {
	defer c.manager.Unregister(c)

	c.conn.SetReadLimit(int64(maxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		var ev event.Envelope
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.logReadError(err)
			return
		}

		// Non-blocking send into inbound processing queue to avoid blocking reader
		select {
		case c.manager.inbound <- inboundMessage{client: c, event: ev}:
		case <-time.After(inboundTimeout):
			c.logger.Warn("inbound send timeout: dropping client")
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	var ne net.Error
	switch {
	case c.ctx.Err() != nil:
		// closed by us
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Debug("client disconnected")
	case errors.As(err, &ne) && ne.Timeout():
		c.logger.Info("client timed out - closing connection")
	default:
		c.logger.Info("error reading from client", zap.Error(err))
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Info("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Info("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close stops both pumps. The egress channel is never closed so concurrent senders cannot panic.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	return c.ctx.Err() != nil
}

// SafeSend attempts to send an event to the client's egress channel.
// Returns true if sent successfully, false if client is closed or timeout.
func (c *Client) SafeSend(ev event.Envelope, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case c.egress <- ev:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Client) sendError(code, message string) {
	env, err := event.NewEnvelope(event.EventError, model.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.SafeSend(env, sendTimeout)
}

// SetTopics narrows delivery to topics; an empty list restores every topic
func (c *Client) SetTopics(topics []string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	if len(topics) == 0 {
		c.topics = nil
		return
	}
	c.topics = make(map[string]bool, len(topics))
	for _, t := range topics {
		c.topics[t] = true
	}
}

// Wants reports whether frames of topic are delivered to c
func (c *Client) Wants(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	return c.topics == nil || c.topics[topic]
}

// Topics returns the subscription, nil meaning every topic
func (c *Client) Topics() []string {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	if c.topics == nil {
		return nil
	}
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func validTopics(requested []string) (valid, unknown []string) {
	known := make(map[string]bool, len(event.Topics))
	for _, t := range event.Topics {
		known[t] = true
	}
	for _, t := range requested {
		if known[t] {
			valid = append(valid, t)
		} else {
			unknown = append(unknown, t)
		}
	}
	return valid, unknown
}

func splitTopics(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func joinTopics(topics []string) string {
	return strings.Join(topics, ", ")
}
