package ws

import (
	"encoding/json"
	"quizroom/internal/metrics"
	"sync"

	"github.com/sirupsen/logrus"
)

const sendBufferSize = 256

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one live websocket connection
type Client struct {
	ID   string
	Send chan []byte
	Hub  *Hub

	rooms map[string]struct{} // owned by the hub goroutine
}

// BroadcastMessage is a message to deliver
type BroadcastMessage struct {
	RoomID string // set for room broadcasts
	ConnID string // set for direct sends
	Data   []byte
}

type subscription struct {
	connID string
	roomID string
	join   bool
}

// op is one queued hub operation, either a subscription change or a message
type op struct {
	sub *subscription
	msg *BroadcastMessage
}

// Hub fans messages out to room channels. A single goroutine owns the
// connection and room tables, so subscriptions and messages are applied in
// the order they were issued.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client // roomID -> connID -> client

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Client
	unregister chan *Client
	ops        chan op
	done       chan struct{}
	closeOnce  sync.Once

	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(m *metrics.Metrics, log logrus.FieldLogger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ops:        make(chan op, sendBufferSize),
		done:       make(chan struct{}),
		metrics:    m,
		log:        log,
	}
	go h.run()
	return h
}

// NewClient creates a client bound to this hub
func (h *Hub) NewClient(connID string) *Client {
	return &Client{
		ID:    connID,
		Send:  make(chan []byte, sendBufferSize),
		Hub:   h,
		rooms: make(map[string]struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.metrics.Connections.Inc()
			h.log.WithField("conn_id", c.ID).Debug("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.clients[c.ID]; ok && existing == c {
				h.drop(c)
				h.log.WithField("conn_id", c.ID).Debug("client disconnected")
			}
			h.mu.Unlock()

		case o := <-h.ops:
			h.mu.Lock()
			if o.sub != nil {
				h.applySubscription(*o.sub)
			} else {
				h.deliver(o.msg)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) applySubscription(s subscription) {
	c, ok := h.clients[s.connID]
	if !ok {
		return
	}
	if s.join {
		if h.rooms[s.roomID] == nil {
			h.rooms[s.roomID] = make(map[string]*Client)
		}
		h.rooms[s.roomID][c.ID] = c
		c.rooms[s.roomID] = struct{}{}
		return
	}
	h.leave(c, s.roomID)
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	if msg.ConnID != "" {
		if c, ok := h.clients[msg.ConnID]; ok {
			h.push(c, msg.Data)
		}
		return
	}
	for _, c := range h.rooms[msg.RoomID] {
		h.push(c, msg.Data)
	}
}

// push never blocks: a client whose buffer is full is dropped and has to
// reconnect and resync
func (h *Hub) push(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		h.metrics.DroppedMessages.Inc()
		h.log.WithField("conn_id", c.ID).Warn("send buffer full, dropping client")
		h.drop(c)
	}
}

// drop removes a client from every table and closes its queue. Callers hold mu.
func (h *Hub) drop(c *Client) {
	for roomID := range c.rooms {
		h.leave(c, roomID)
	}
	delete(h.clients, c.ID)
	close(c.Send)
	h.metrics.Connections.Dec()
}

func (h *Hub) leave(c *Client, roomID string) {
	delete(c.rooms, roomID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Register adds a client
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Close stops the hub and closes every client queue
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Subscribe adds a connection to a room channel (implements service.Broadcaster)
func (h *Hub) Subscribe(connID, roomID string) {
	h.enqueue(op{sub: &subscription{connID: connID, roomID: roomID, join: true}})
}

// Unsubscribe removes a connection from a room channel (implements service.Broadcaster)
func (h *Hub) Unsubscribe(connID, roomID string) {
	h.enqueue(op{sub: &subscription{connID: connID, roomID: roomID}})
}

// BroadcastToRoom sends a message to every connection in a room (implements service.Broadcaster)
func (h *Hub) BroadcastToRoom(roomID, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.WithError(err).WithField("type", msgType).Error("failed to encode message")
		return
	}
	h.enqueue(op{msg: &BroadcastMessage{RoomID: roomID, Data: data}})
}

// SendToConnection sends a message to one connection (implements service.Broadcaster)
func (h *Hub) SendToConnection(connID, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.WithError(err).WithField("type", msgType).Error("failed to encode message")
		return
	}
	h.enqueue(op{msg: &BroadcastMessage{ConnID: connID, Data: data}})
}

func (h *Hub) enqueue(o op) {
	select {
	case h.ops <- o:
	case <-h.done:
	}
}

// Members returns the number of connections subscribed to a room
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(&Message{Type: msgType, Payload: raw})
}
