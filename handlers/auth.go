package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"chatter/auth"
	"chatter/logger"
	"chatter/models"
	"chatter/store"
)

type AuthHandler struct {
	Store store.Store
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Surname  string `json:"surname" binding:"required,min=2,max=50"`
	Username string `json:"username" binding:"required,alphanum,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"` // email or username
	Password string `json:"password" binding:"required"`
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID.Hex(),
		"name":     u.Name,
		"surname":  u.Surname,
		"username": u.Username,
		"email":    u.Email,
		"avatar":   u.Avatar,
		"status":   u.Status,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	now := time.Now().Unix()
	user := &models.User{
		Name:         req.Name,
		Surname:      req.Surname,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Status:       models.StatusOffline,
		LastActivity: now,
		Lifecycle:    models.LifecycleActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusBadRequest, "A user with this email or username already exists")
			return
		}
		logger.L().Error().Err(err).Msg("create user failed")
		fail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := auth.NewToken(user.ID.Hex())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"userId":  user.ID.Hex(),
		"user":    userBody(user),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Store.GetUserByLogin(ctx, req.Login)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid login or password")
		return
	}
	if err != nil {
		logger.L().Error().Err(err).Msg("login lookup failed")
		fail(c, http.StatusInternalServerError, "Database error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid login or password")
		return
	}

	token, err := auth.NewToken(user.ID.Hex())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"userId":  user.ID.Hex(),
		"user":    userBody(user),
	})
}
