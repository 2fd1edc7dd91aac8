// Package websocket is the realtime layer: one connection per client
// session, joined into per-chat rooms, with best-effort fan-out of new
// messages to every connection currently in a chat's room.
package websocket

import (
	"encoding/json"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/logger"
	"chatter/models"
	"chatter/store"
)

// Event is the wire envelope for everything crossing a websocket.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomEvent struct {
	chatID primitive.ObjectID
	data   []byte
}

// Manager owns the room registry: a guarded map of chat id to the set of
// connections currently joined. It is built in main and injected wherever
// broadcasts originate.
type Manager struct {
	store store.Store

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[primitive.ObjectID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent
}

func NewManager(st store.Store) *Manager {
	return &Manager{
		store:      st,
		clients:    make(map[*Client]bool),
		rooms:      make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent, 64),
	}
}

// Start runs the manager loop. Call once, in its own goroutine.
func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.mu.Unlock()
			logger.L().Debug().
				Str("connection_id", client.id).
				Str("user_id", client.userID.Hex()).
				Int("clients", total).
				Msg("websocket client registered")

		case client := <-m.unregister:
			m.removeClient(client)

		case evt := <-m.broadcast:
			m.deliver(evt)
		}
	}
}

func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	for chatID, room := range m.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(m.rooms, chatID)
		}
	}
	client.shutdown()
}

// deliver fans an event out to every connection in the room. A connection
// with a full send buffer is dropped rather than allowed to stall the rest.
func (m *Manager) deliver(evt roomEvent) {
	m.mu.RLock()
	room := make([]*Client, 0, len(m.rooms[evt.chatID]))
	for client := range m.rooms[evt.chatID] {
		room = append(room, client)
	}
	m.mu.RUnlock()

	for _, client := range room {
		select {
		case client.send <- evt.data:
		default:
			m.removeClient(client)
		}
	}
}

// JoinRoom adds the connection to a chat's room. Idempotent.
func (m *Manager) JoinRoom(chatID primitive.ObjectID, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[chatID]
	if !ok {
		room = make(map[*Client]bool)
		m.rooms[chatID] = room
	}
	room[client] = true
}

// LeaveRoom removes the connection from a chat's room. Idempotent.
func (m *Manager) LeaveRoom(chatID primitive.ObjectID, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[chatID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(m.rooms, chatID)
		}
	}
}

// RoomSize reports how many connections are currently joined to a chat.
func (m *Manager) RoomSize(chatID primitive.ObjectID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[chatID])
}

// BroadcastNewMessage emits the enriched message to every connection in
// the owning chat's room, the sender's own other connections included.
func (m *Manager) BroadcastNewMessage(view *models.MessageView) {
	m.BroadcastToRoom(view.ChatID, "new_message", view)
}

// BroadcastToRoom queues an event for everyone in a chat's room.
// Delivery is best-effort: connections not joined at this moment miss it.
func (m *Manager) BroadcastToRoom(chatID primitive.ObjectID, eventType string, payload interface{}) {
	data, err := marshalEvent(eventType, payload)
	if err != nil {
		logger.L().Error().Err(err).Str("event", eventType).Msg("marshal broadcast event")
		return
	}
	m.broadcast <- roomEvent{chatID: chatID, data: data}
}

func marshalEvent(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}
