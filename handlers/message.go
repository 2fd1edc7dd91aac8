package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatter/logger"
	"chatter/models"
	"chatter/store"
	"chatter/websocket"
)

type MessageHandler struct {
	Store    store.Store
	Manager  *websocket.Manager
	Notifier *PushNotifier
}

// List returns one page of chat history, ascending. Pages are taken
// newest-first, so page 1 holds the latest messages.
func (h *MessageHandler) List(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "chatId")
	if !ok {
		return
	}
	page, limit := pageParams(c, 50)

	ctx, cancel := reqCtx(c)
	defer cancel()

	member, err := h.Store.IsMember(ctx, chatID, caller)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to verify chat access")
		return
	}
	if !member {
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}

	messages, total, err := h.Store.ListMessages(ctx, chatID, page, limit)
	if err != nil {
		logger.L().Error().Err(err).Msg("list messages failed")
		fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"messages":   messages,
		"pagination": pagination{Page: page, Limit: limit, Total: total},
	})
}

type SendMessageRequest struct {
	Text        string   `json:"text" binding:"required,min=1,max=1000"`
	Attachments []string `json:"attachments"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "chatId")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if !models.ValidAttachmentURIs(req.Attachments) {
		fail(c, http.StatusBadRequest, "Invalid attachment URI")
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	member, err := h.Store.IsMember(ctx, chatID, caller)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to verify chat access")
		return
	}
	if !member {
		// Same response as a missing chat so membership never leaks.
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}

	view, err := h.Store.SaveMessage(ctx, &models.Message{
		ChatID:      chatID,
		SenderID:    caller,
		Text:        req.Text,
		Attachments: req.Attachments,
	})
	if err != nil {
		logger.L().Error().Err(err).Msg("save message failed")
		fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	if h.Manager != nil {
		h.Manager.BroadcastNewMessage(view)
	}
	if h.Notifier != nil {
		go h.Notifier.NotifyNewMessage(view)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": view})
}

// MarkRead flags every message in the chat not sent by the caller as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "chatId")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	member, err := h.Store.IsMember(ctx, chatID, caller)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to verify chat access")
		return
	}
	if !member {
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}

	count, err := h.Store.MarkMessagesRead(ctx, chatID, caller)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to mark messages as read")
		return
	}

	if h.Manager != nil && count > 0 {
		h.Manager.BroadcastToRoom(chatID, "message_read", gin.H{
			"chatId": chatID.Hex(),
			"userId": caller.Hex(),
			"count":  count,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Messages marked as read",
		"updatedCount": count,
	})
}

type EditMessageRequest struct {
	Text string `json:"text" binding:"required,min=1,max=1000"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	messageID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Store.EditMessage(ctx, messageID, caller, req.Text)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to edit message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": view})
}

// Delete removes the caller's own message for good. Not-owned and missing
// messages are indistinguishable.
func (h *MessageHandler) Delete(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	messageID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Store.DeleteMessage(ctx, messageID, caller); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Message not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to delete message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}
