package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"sort"
	"sync"
	"time"

	"Flort/internal/event"
	"Flort/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	shardCount = 16
)

type inboundMessage struct {
	event  event.Envelope
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	clients map[string]*Client
}

// Hub pushes every broker event to the connected dashboards
type Hub struct {
	shards     [shardCount]*clientBucket
	register   chan *Client
	unregister chan *Client
	frames     chan event.Envelope
	inbound    chan inboundMessage
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	detach     func()
}

// NewHub subscribes to every topic of broker. allowedOrigins may contain "*"; requests without an
// Origin header are always accepted.
func NewHub(broker *event.Broker, allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		frames:     make(chan event.Envelope, frameBufSize),
		inbound:    make(chan inboundMessage, 256),
		logger:     logger.Named("hub"),
		ctx:        ctx,
		cancel:     cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			clients: make(map[string]*Client),
		}
	}

	// run manager loop
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.run()
	}()
	go func() {
		defer h.wg.Done()
		h.dispatch()
	}()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	if broker != nil {
		h.detach = broker.SubscribeAll(h.enqueue)
	}
	return h
}

// enqueue runs inside the publisher's call, so it never blocks
func (h *Hub) enqueue(env event.Envelope) {
	select {
	case h.frames <- env:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("frame buffer full, dropping event", zap.String("event", env.Event))
	}
}

func (h *Hub) dispatch() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case env := <-h.frames:
			h.broadcast(env)
		}
	}
}

func (h *Hub) handleEvent(ev event.Envelope, c *Client) {
	switch ev.Event {
	case event.EventSubscribe:
		topics, unknown := validTopics(ev.Topics)
		if len(unknown) > 0 {
			c.sendError("unknown_topic", "unknown topics: "+joinTopics(unknown))
			if len(topics) == 0 {
				return
			}
		}
		c.SetTopics(topics)
		h.logger.Debug("client subscribed",
			zap.String("client_id", c.ID),
			zap.Strings("topics", topics),
		)
	default:
		h.logger.Debug("unknown event type", zap.String("event", ev.Event), zap.String("client_id", c.ID))
		c.sendError("unsupported_event", "unsupported event: "+ev.Event)
	}
}

// broadcast delivers env to every client interested in its topic
func (h *Hub) broadcast(env event.Envelope) {
	clients := h.snapshot()

	// deliver to clients without holding lock
	for _, c := range clients {
		if !c.Wants(env.Event) {
			continue
		}
		if c.SafeSend(env, sendTimeout) {
			continue
		}
		if c.IsClosed() {
			continue
		}
		// egress full -> apply policy
		h.logger.Warn("egress full", zap.String("client_id", c.ID))
		if kickOnFull {
			h.Unregister(c)
		}
	}
}

func (h *Hub) snapshot() []*Client {
	var clients []*Client
	for _, b := range h.shards {
		b.RLock()
		for _, c := range b.clients {
			clients = append(clients, c)
		}
		b.RUnlock()
	}
	return clients
}

// Unregister removes c asynchronously
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-time.After(unregisterTimeout):
		h.logger.Warn("failed to unregister client: timeout", zap.String("client_id", c.ID))
		c.Close()
	case <-h.ctx.Done():
		c.Close()
	}
}

func getShard(id string) uint32 {
	if id == "" {
		return 0
	}

	h := sha1.Sum([]byte(id))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

func (h *Hub) addClient(c *Client) {
	sh := getShard(c.ID)
	b := h.shards[sh]
	b.Lock()
	b.clients[c.ID] = c
	b.Unlock()

	h.logger.Info("client registered", zap.String("client_id", c.ID), zap.Uint32("shard", sh))
}

func (h *Hub) removeClient(c *Client) {
	sh := getShard(c.ID)
	b := h.shards[sh]
	b.Lock()
	_, exists := b.clients[c.ID]
	delete(b.clients, c.ID)
	b.Unlock()

	c.Close()
	if exists {
		h.logger.Info("client removed", zap.String("client_id", c.ID), zap.Uint32("shard", sh))
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// ClientCount returns the number of registered dashboards
func (h *Hub) ClientCount() int {
	n := 0
	for _, b := range h.shards {
		b.RLock()
		n += len(b.clients)
		b.RUnlock()
	}
	return n
}

// Clients describes every registered dashboard, sorted by id
func (h *Hub) Clients() []model.ClientInfo {
	clients := h.snapshot()
	out := make([]model.ClientInfo, 0, len(clients))
	for _, c := range clients {
		out = append(out, model.ClientInfo{ClientID: c.ID, Topics: c.Topics()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Stop detaches from the broker and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.detach != nil {
			h.detach()
		}
		h.cancel()

		for _, c := range h.snapshot() {
			c.Close()
		}
		h.wg.Wait()
		h.logger.Info("hub stopped")
	})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 || set["*"] {
			return true
		}
		return set[origin]
	}
}

// ServeWS upgrades the request and registers a dashboard client.
// The optional "topics" query parameter (comma separated) narrows the initial subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	topics, _ := validTopics(splitTopics(r.URL.Query().Get("topics")))
	RegisterClient(conn, h, topics)
}
