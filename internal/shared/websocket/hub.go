package websocket

import (
	"context"
	"sync"

	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const defaultQueueSize = 1024

// Hub keeps the connection registry, grouped by room, and delivers outbound frames.
// Membership changes apply immediately; frames go through one queue drained by Run, so every
// connection receives frames in the order they were enqueued.
type Hub struct {
	mu sync.RWMutex
	// connection id -> client
	clients map[string]*Client
	// room id -> connection id -> client
	rooms map[string]map[string]*Client
	// connection id -> room id; a connection is in at most one room
	roomOf map[string]string

	outbound chan *Message
}

// Message is one queued frame. ConnID targets a single connection; otherwise the frame goes
// to every connection in RoomID except Except. A Close message carries no frame and empties
// RoomID's group.
type Message struct {
	RoomID string
	ConnID string
	Except string
	Data   []byte
	Close  bool
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		roomOf:   make(map[string]string),
		outbound: make(chan *Message, queueSize),
	}
}

// Run delivers queued frames until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket Hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket Hub shutting down due to context cancellation")
			return
		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *Message) {
	if msg.Close {
		h.closeRoom(msg.RoomID)
		return
	}
	var slow []*Client

	h.mu.RLock()
	if msg.ConnID != "" {
		if c, ok := h.clients[msg.ConnID]; ok && !c.offer(msg.Data) {
			slow = append(slow, c)
		}
	} else {
		for id, c := range h.rooms[msg.RoomID] {
			if id == msg.Except {
				continue
			}
			if !c.offer(msg.Data) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn("Failed to Send message to client, unregistering",
			zap.String("clientID", c.ID),
			zap.String("roomID", msg.RoomID),
		)
		h.Unregister(c)
	}
}

// Register adds a connection that is not yet in any room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	log.Info("Client registered", zap.String("clientID", c.ID), zap.Int("total_clients", total))
}

// Unregister removes the connection everywhere and closes its send queue. Repeated calls
// are no-ops.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	h.leaveLocked(c.ID)
	close(c.Send)
	total := len(h.clients)
	h.mu.Unlock()

	log.Info("Client unregistered", zap.String("clientID", c.ID), zap.Int("total_clients", total))
}

// Subscribe moves the connection into roomID's group.
func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.leaveLocked(connID)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connID] = c
	h.roomOf[connID] = roomID
}

// Unsubscribe removes the connection from roomID's group if it is there.
func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomOf[connID] == roomID {
		h.leaveLocked(connID)
	}
}

func (h *Hub) leaveLocked(connID string) {
	roomID, ok := h.roomOf[connID]
	if !ok {
		return
	}
	delete(h.roomOf, connID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
			log.Debug("Room group removed as empty", zap.String("roomID", roomID))
		}
	}
}

func (h *Hub) closeRoom(roomID string) {
	h.mu.Lock()
	members := h.rooms[roomID]
	for connID := range members {
		delete(h.roomOf, connID)
	}
	delete(h.rooms, roomID)
	h.mu.Unlock()

	log.Debug("Room group closed", zap.String("roomID", roomID), zap.Int("members", len(members)))
}

// SendTo queues a frame for one connection.
func (h *Hub) SendTo(connID string, data []byte) {
	h.enqueue(&Message{ConnID: connID, Data: data})
}

// BroadcastToRoom queues a frame for every connection in the room except except.
func (h *Hub) BroadcastToRoom(roomID string, data []byte, except string) {
	h.enqueue(&Message{RoomID: roomID, Except: except, Data: data})
}

// CloseRoom empties the room's group once every frame queued before it is delivered.
// Connections stay registered.
func (h *Hub) CloseRoom(roomID string) {
	h.enqueue(&Message{RoomID: roomID, Close: true})
}

func (h *Hub) enqueue(msg *Message) {
	select {
	case h.outbound <- msg:
	default:
		log.Error("Outbound queue is full, message dropped",
			zap.String("roomID", msg.RoomID),
			zap.String("connID", msg.ConnID),
		)
	}
}

// Stats reports connected clients and non-empty rooms.
type Stats struct {
	Clients int            `json:"clients"`
	Rooms   int            `json:"rooms"`
	PerRoom map[string]int `json:"perRoom"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	per := make(map[string]int, len(h.rooms))
	for id, members := range h.rooms {
		per[id] = len(members)
	}
	return Stats{Clients: len(h.clients), Rooms: len(h.rooms), PerRoom: per}
}
