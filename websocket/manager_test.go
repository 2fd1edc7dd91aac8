package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/models"
	"chatter/store/memstore"
)

func newTestClient(m *Manager) *Client {
	return &Client{
		id:      primitive.NewObjectID().Hex(),
		userID:  primitive.NewObjectID(),
		send:    make(chan []byte, 8),
		done:    make(chan struct{}),
		manager: m,
	}
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(memstore.New())
	go m.Start()
	return m
}

func registerClient(t *testing.T, m *Manager) *Client {
	t.Helper()
	c := newTestClient(m)
	m.register <- c
	return c
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	m := startManager(t)
	chatID := primitive.NewObjectID()

	joined1 := registerClient(t, m)
	joined2 := registerClient(t, m)
	outsider := registerClient(t, m)

	m.JoinRoom(chatID, joined1)
	m.JoinRoom(chatID, joined2)

	view := &models.MessageView{
		ID:     primitive.NewObjectID(),
		ChatID: chatID,
		Text:   "hello room",
	}
	m.BroadcastNewMessage(view)

	for _, c := range []*Client{joined1, joined2} {
		evt := recvEvent(t, c)
		if evt.Type != "new_message" {
			t.Errorf("expected new_message, got %q", evt.Type)
		}
		var got models.MessageView
		if err := json.Unmarshal(evt.Payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.Text != "hello room" {
			t.Errorf("unexpected payload text %q", got.Text)
		}
	}
	expectNoEvent(t, outsider)

	// Exactly once per connection.
	expectNoEvent(t, joined1)
	expectNoEvent(t, joined2)
}

func TestJoinRoomIdempotent(t *testing.T) {
	m := startManager(t)
	chatID := primitive.NewObjectID()

	c := registerClient(t, m)
	m.JoinRoom(chatID, c)
	m.JoinRoom(chatID, c)

	if got := m.RoomSize(chatID); got != 1 {
		t.Errorf("expected room size 1, got %d", got)
	}

	m.BroadcastToRoom(chatID, "new_message", map[string]string{"text": "once"})
	recvEvent(t, c)
	expectNoEvent(t, c)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	m := startManager(t)
	chatID := primitive.NewObjectID()

	c := registerClient(t, m)
	m.JoinRoom(chatID, c)
	m.LeaveRoom(chatID, c)

	if got := m.RoomSize(chatID); got != 0 {
		t.Errorf("expected empty room, got %d", got)
	}

	m.BroadcastToRoom(chatID, "new_message", map[string]string{"text": "missed"})
	expectNoEvent(t, c)
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	m := startManager(t)
	chatA := primitive.NewObjectID()
	chatB := primitive.NewObjectID()

	c := registerClient(t, m)
	m.JoinRoom(chatA, c)
	m.JoinRoom(chatB, c)

	m.unregister <- c

	// Wait for the manager loop to process the unregister: the done
	// channel is closed as part of removal.
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unregister")
	}

	if m.RoomSize(chatA) != 0 || m.RoomSize(chatB) != 0 {
		t.Errorf("expected client removed from all rooms, got %d and %d",
			m.RoomSize(chatA), m.RoomSize(chatB))
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	m := startManager(t)
	chatID := primitive.NewObjectID()

	slow := newTestClient(m)
	slow.send = make(chan []byte, 1)
	m.register <- slow
	m.JoinRoom(chatID, slow)

	healthy := registerClient(t, m)
	m.JoinRoom(chatID, healthy)

	// Fill the slow client's buffer, then broadcast once more. The second
	// event cannot be queued and the connection is removed.
	m.BroadcastToRoom(chatID, "new_message", map[string]string{"n": "1"})
	recvEvent(t, healthy)
	m.BroadcastToRoom(chatID, "new_message", map[string]string{"n": "2"})
	recvEvent(t, healthy)

	deadline := time.After(time.Second)
	for m.RoomSize(chatID) != 1 {
		select {
		case <-deadline:
			t.Fatalf("expected slow client dropped, room size %d", m.RoomSize(chatID))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// A client dropped for being slow may still have inbound events in flight
// on its readPump. A late sendEvent must be a silent no-op, never a panic.
func TestDroppedClientLateSendIsNoop(t *testing.T) {
	m := startManager(t)
	chatID := primitive.NewObjectID()

	slow := newTestClient(m)
	slow.send = make(chan []byte, 1)
	m.register <- slow
	m.JoinRoom(chatID, slow)

	m.BroadcastToRoom(chatID, "new_message", map[string]string{"n": "1"})
	m.BroadcastToRoom(chatID, "new_message", map[string]string{"n": "2"})

	deadline := time.After(time.Second)
	for m.RoomSize(chatID) != 0 {
		select {
		case <-deadline:
			t.Fatalf("expected slow client dropped, room size %d", m.RoomSize(chatID))
		case <-time.After(10 * time.Millisecond):
		}
	}

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("expected done channel closed after drop")
	}

	slow.sendError("too late")
	slow.sendEvent("pong", map[string]int64{"time": 0})
}

func TestDecodeChatID(t *testing.T) {
	id := primitive.NewObjectID()

	obj, _ := json.Marshal(map[string]string{"chatId": id.Hex()})
	got, ok := decodeChatID(obj)
	if !ok || got != id {
		t.Errorf("object payload: got %v ok=%v", got, ok)
	}

	bare, _ := json.Marshal(id.Hex())
	got, ok = decodeChatID(bare)
	if !ok || got != id {
		t.Errorf("bare string payload: got %v ok=%v", got, ok)
	}

	if _, ok := decodeChatID([]byte(`{"chatId":"nope"}`)); ok {
		t.Error("expected failure for invalid hex")
	}
	if _, ok := decodeChatID([]byte(`123`)); ok {
		t.Error("expected failure for numeric payload")
	}
}
