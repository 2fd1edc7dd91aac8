package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatter/logger"
	"chatter/store"
)

type UserHandler struct {
	Store store.Store
}

// List is the user directory: everyone except the caller, active only,
// optionally filtered by a name/surname/username search.
func (h *UserHandler) List(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	page, limit := pageParams(c, 20)

	ctx, cancel := reqCtx(c)
	defer cancel()

	users, total, err := h.Store.ListUsers(ctx, caller, c.Query("search"), page, limit)
	if err != nil {
		logger.L().Error().Err(err).Msg("list users failed")
		fail(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"users":      users,
		"pagination": pagination{Page: page, Limit: limit, Total: total},
	})
}

func (h *UserHandler) Me(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Store.GetUserByID(ctx, caller)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	body := userBody(user)
	body["lastActivity"] = user.LastActivity
	body["createdAt"] = user.CreatedAt
	c.JSON(http.StatusOK, gin.H{"success": true, "user": body})
}

type UpdateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=50"`
	Surname  *string `json:"surname" binding:"omitempty,min=2,max=50"`
	Username *string `json:"username" binding:"omitempty,alphanum,min=3,max=30"`
	Avatar   *string `json:"avatar" binding:"omitempty,url"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Store.UpdateUserProfile(ctx, caller, store.ProfileUpdate{
		Name:     req.Name,
		Surname:  req.Surname,
		Username: req.Username,
		Avatar:   req.Avatar,
	})
	if errors.Is(err, store.ErrDuplicate) {
		fail(c, http.StatusBadRequest, "A user with this username already exists")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logger.L().Error().Err(err).Msg("update profile failed")
		fail(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated",
		"user":    userBody(user),
	})
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=online offline away"`
}

func (h *UserHandler) UpdateStatus(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Store.UpdateUserStatus(ctx, caller, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status updated"})
}

func (h *UserHandler) GetByID(c *gin.Context) {
	userID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user.Public()})
}
