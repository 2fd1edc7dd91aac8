package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/logger"
	"chatter/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
	storeTimeout   = 10 * time.Second
	maxTextLen     = 1000
)

// Client is one authenticated websocket connection. A user with several
// sessions has several Clients, each joined to rooms independently.
type Client struct {
	id      string
	conn    *websocket.Conn
	userID  primitive.ObjectID
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	manager *Manager
}

// shutdown signals writePump to finish and makes further sendEvent calls
// no-ops. The send channel itself is never closed, so a readPump still
// processing an inbound event cannot panic on a late send.
func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

type joinLeavePayload struct {
	ChatID string `json:"chatId"`
}

type sendMessagePayload struct {
	ChatID      string   `json:"chatId"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}

// readPump processes inbound events sequentially, in arrival order, for
// this one connection.
func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Debug().Err(err).Str("connection_id", c.id).Msg("websocket read error")
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.sendError("Malformed event")
			continue
		}

		switch evt.Type {
		case "join_chats":
			c.handleJoinChats()
		case "join_chat":
			c.handleJoinChat(evt.Payload)
		case "leave_chat":
			c.handleLeaveChat(evt.Payload)
		case "send_message":
			c.handleSendMessage(evt.Payload)
		case "ping":
			c.sendEvent("pong", map[string]int64{"time": time.Now().Unix()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleJoinChats joins the rooms of every chat the user participates in.
func (c *Client) handleJoinChats() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	chatIDs, err := c.manager.store.ChatIDsForUser(ctx, c.userID)
	if err != nil {
		logger.L().Error().Err(err).Str("user_id", c.userID.Hex()).Msg("join_chats lookup failed")
		c.sendError("Failed to join chats")
		return
	}
	for _, chatID := range chatIDs {
		c.manager.JoinRoom(chatID, c)
	}
}

// handleJoinChat joins one chat's room after a membership check. A failed
// check is a silent no-op so chat existence never leaks.
func (c *Client) handleJoinChat(payload json.RawMessage) {
	chatID, ok := decodeChatID(payload)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	member, err := c.manager.store.IsMember(ctx, chatID, c.userID)
	if err != nil || !member {
		return
	}
	c.manager.JoinRoom(chatID, c)
}

func (c *Client) handleLeaveChat(payload json.RawMessage) {
	if chatID, ok := decodeChatID(payload); ok {
		c.manager.LeaveRoom(chatID, c)
	}
}

// handleSendMessage validates, persists and fans out one message. All
// failures are reported only to this connection as an error event.
func (c *Client) handleSendMessage(payload json.RawMessage) {
	var req sendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("Malformed event")
		return
	}

	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		c.sendError("Invalid chat ID")
		return
	}
	if n := utf8.RuneCountInString(req.Text); n < 1 || n > maxTextLen {
		c.sendError("Message text must be between 1 and 1000 characters")
		return
	}
	if !models.ValidAttachmentURIs(req.Attachments) {
		c.sendError("Invalid attachment URI")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	member, err := c.manager.store.IsMember(ctx, chatID, c.userID)
	if err != nil {
		c.sendError("Failed to send message")
		return
	}
	if !member {
		// Deliberately the same answer as a missing chat.
		c.sendError("Chat not found")
		return
	}

	view, err := c.manager.store.SaveMessage(ctx, &models.Message{
		ChatID:      chatID,
		SenderID:    c.userID,
		Text:        req.Text,
		Attachments: req.Attachments,
	})
	if err != nil {
		logger.L().Error().Err(err).Str("chat_id", chatID.Hex()).Msg("save message failed")
		c.sendError("Failed to send message")
		return
	}

	c.manager.BroadcastNewMessage(view)
}

func (c *Client) sendEvent(eventType string, payload interface{}) {
	data, err := marshalEvent(eventType, payload)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent("error", map[string]string{"message": message})
}

func decodeChatID(payload json.RawMessage) (primitive.ObjectID, bool) {
	var p joinLeavePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		// The original client also sends the chat id as a bare string.
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return primitive.NilObjectID, false
		}
		p.ChatID = s
	}
	id, err := primitive.ObjectIDFromHex(p.ChatID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
