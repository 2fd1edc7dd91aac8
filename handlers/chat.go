package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/logger"
	"chatter/models"
	"chatter/store"
)

type ChatHandler struct {
	Store store.Store
}

func (h *ChatHandler) List(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	chats, err := h.Store.ListChats(ctx, caller)
	if err != nil {
		logger.L().Error().Err(err).Msg("list chats failed")
		fail(c, http.StatusInternalServerError, "Failed to fetch chats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

type CreateChatRequest struct {
	Name         string   `json:"name" binding:"omitempty,min=1,max=100"`
	IsGroup      bool     `json:"isGroup"`
	Participants []string `json:"participants" binding:"required,min=1"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	// Creator is always a participant; duplicates collapse.
	participants := []primitive.ObjectID{caller}
	seen := map[primitive.ObjectID]bool{caller: true}
	for _, p := range req.Participants {
		id, err := primitive.ObjectIDFromHex(p)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid participant ID")
			return
		}
		if !seen[id] {
			seen[id] = true
			participants = append(participants, id)
		}
	}

	if len(participants) < 2 {
		fail(c, http.StatusBadRequest, "Chat must include at least two participants")
		return
	}
	if !req.IsGroup && len(participants) != 2 {
		fail(c, http.StatusBadRequest, "Direct chat must have exactly two participants")
		return
	}
	if req.IsGroup && req.Name == "" {
		fail(c, http.StatusBadRequest, "Group chat requires a name")
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	for _, id := range participants[1:] {
		if _, err := h.Store.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fail(c, http.StatusBadRequest, "Some participants were not found")
				return
			}
			fail(c, http.StatusInternalServerError, "Database error")
			return
		}
	}

	if !req.IsGroup {
		_, err := h.Store.FindDirectChat(ctx, participants[0], participants[1])
		if err == nil {
			fail(c, http.StatusBadRequest, "A chat with this user already exists")
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusInternalServerError, "Database error")
			return
		}
	}

	name := ""
	if req.IsGroup {
		name = req.Name
	}
	chat := &models.Chat{
		Name:         name,
		IsGroup:      req.IsGroup,
		Participants: participants,
		CreatedBy:    caller,
	}
	if err := h.Store.CreateChat(ctx, chat); err != nil {
		logger.L().Error().Err(err).Msg("create chat failed")
		fail(c, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	view, err := h.Store.GetChat(ctx, chat.ID, caller)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch chat")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Chat created",
		"chat":    view,
	})
}

func (h *ChatHandler) Get(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Store.GetChat(ctx, chatID, caller)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chat": view})
}

type RenameChatRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// Rename applies to group chats only; direct chats take their display
// name from the partner.
func (h *ChatHandler) Rename(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Store.RenameChat(ctx, chatID, caller, req.Name)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Chat updated",
		"chat":    view,
	})
}

type AddParticipantRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *ChatHandler) AddParticipant(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	newUserID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid participant ID")
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Store.AddParticipant(ctx, chatID, caller, newUserID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Chat not found")
		return
	}
	if errors.Is(err, store.ErrDuplicate) {
		fail(c, http.StatusBadRequest, "User is already in the chat")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to add participant")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Participant added",
		"chat":    view,
	})
}

// RemoveParticipant drops a member from a group chat. The store
// soft-deletes the chat when fewer than two participants remain.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	chatID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathObjectID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Store.RemoveParticipant(ctx, chatID, caller, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to remove participant")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Participant removed"})
}
