package beaconlib

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	DefaultBackfillSize = 50

	MessageTypeJoinAdmin    = "join_admin"
	MessageTypeInitVisitors = "init_visitors"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"

	hubQueueSize       = 256
	hubBackfillTimeout = 5 * time.Second
)

// ErrRealtimeQueueFull is reported if an event was dropped because the
// hub cannot keep up.
var ErrRealtimeQueueFull = errors.New("realtime queue is full, event is dropped")

// Message is a frame of the realtime channel.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// HubOptions tunes Hub. Zero values mean defaults.
type HubOptions struct {
	BackfillSize int

	// AllowedOrigins is a list of origins which may open the realtime
	// channel. If it is empty, only same-origin connections are
	// accepted. "*" allows everyone.
	AllowedOrigins []string
}

// Hub delivers visit events to subscribed admins. A connection is not
// subscribed until it sends join_admin message. After that it gets a
// backfill of the most recent visits once and then a stream of events.
//
// Delivery is best effort. Slow clients are disconnected, events are
// dropped if the queue is full.
type Hub struct {
	logger   Logger
	store    Store
	opts     HubOptions
	upgrader websocket.Upgrader

	// a value tells if a client is subscribed. Owned by Serve.
	clients map[*hubClient]bool

	register   chan *hubClient
	unregister chan *hubClient
	join       chan *hubClient
	broadcast  chan []byte
}

// Broadcast enqueues an event for all subscribed clients. It never
// blocks.
func (h *Hub) Broadcast(event string, visit *Visit) {
	data, err := json.Marshal(Message{Type: event, Data: visit})
	if err != nil {
		h.logger.HubError(err)

		return
	}

	select {
	case h.broadcast <- data:
	default:
		metricEventsDropped.Inc()
		h.logger.HubError(ErrRealtimeQueueFull)
	}
}

// Serve runs the hub loop until context is closed. Then all clients
// are disconnected.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			count := len(h.clients)

			for client := range h.clients {
				h.drop(client)
			}

			h.logger.HubInfo("realtime hub is stopped", count)

			return ctx.Err()
		case client := <-h.register:
			h.clients[client] = false
			h.logger.HubInfo("client has connected", len(h.clients))
		case client := <-h.unregister:
			h.drop(client)
			h.logger.HubInfo("client has disconnected", len(h.clients))
		case client := <-h.join:
			h.subscribe(ctx, client)
		case data := <-h.broadcast:
			for client, subscribed := range h.clients {
				if subscribed {
					h.send(client, data)
				}
			}
		}
	}
}

// ServeHTTP upgrades a connection and serves a client until it goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.HubError(err)

		return
	}

	client := newHubClient(h, conn)

	select {
	case h.register <- client:
	case <-req.Context().Done():
		conn.Close()

		return
	}

	go client.writePump()

	client.readPump()
}

func (h *Hub) subscribe(ctx context.Context, client *hubClient) {
	subscribed, ok := h.clients[client]
	if !ok || subscribed {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, hubBackfillTimeout)
	defer cancel()

	visits, err := h.store.List(ctx, 0, h.opts.BackfillSize)
	if err != nil {
		h.logger.HubError(err)
	}

	if visits == nil {
		visits = []Visit{}
	}

	data, err := json.Marshal(Message{Type: MessageTypeInitVisitors, Data: visits})
	if err != nil {
		h.logger.HubError(err)

		return
	}

	h.clients[client] = true

	if h.send(client, data) {
		metricSubscribers.Inc()
		h.logger.HubInfo("admin has joined", len(h.clients))
	}
}

func (h *Hub) send(client *hubClient, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		h.drop(client)
		h.logger.HubError(errSlowClient)

		return false
	}
}

func (h *Hub) drop(client *hubClient) {
	subscribed, ok := h.clients[client]
	if !ok {
		return
	}

	if subscribed {
		metricSubscribers.Dec()
	}

	delete(h.clients, client)
	close(client.send)
	close(client.dropped)
}

func (h *Hub) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(h.opts.AllowedOrigins) == 0 {
		parsed, err := url.Parse(origin)

		return err == nil && strings.EqualFold(parsed.Host, req.Host)
	}

	for _, v := range h.opts.AllowedOrigins {
		if v == "*" || strings.EqualFold(v, origin) {
			return true
		}
	}

	return false
}

// NewHub creates a new hub. It does nothing until Serve is called.
func NewHub(store Store, logger Logger, opts HubOptions) *Hub {
	if opts.BackfillSize <= 0 {
		opts.BackfillSize = DefaultBackfillSize
	}

	rv := &Hub{
		logger:     logger,
		store:      store,
		opts:       opts,
		clients:    map[*hubClient]bool{},
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		join:       make(chan *hubClient),
		broadcast:  make(chan []byte, hubQueueSize),
	}

	rv.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      rv.checkOrigin,
	}

	return rv
}
