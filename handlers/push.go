package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"chatter/logger"
	"chatter/models"
	"chatter/store"
)

type PushHandler struct {
	Store store.Store
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		Auth   string `json:"auth" binding:"required"`
		P256dh string `json:"p256dh" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.Store.SaveSubscription(ctx, &models.PushSubscription{
		UserID: caller,
		Sub: webpush.Subscription{
			Endpoint: req.Endpoint,
			Keys: webpush.Keys{
				Auth:   req.Keys.Auth,
				P256dh: req.Keys.P256dh,
			},
		},
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Subscribed"})
}

func (h *PushHandler) VapidPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"publicKey": os.Getenv("VAPID_PUBLIC_KEY"),
	})
}

// PushNotifier sends a web push to every chat participant other than the
// sender who has a stored subscription. Best-effort: failures are logged
// and never surface to the request path.
type PushNotifier struct {
	Store store.Store
}

func (n *PushNotifier) NotifyNewMessage(view *models.MessageView) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error().Interface("panic", r).Msg("panic in push notification")
		}
	}()

	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if privateKey == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	participants, err := n.Store.ChatParticipants(ctx, view.ChatID)
	if err != nil {
		logger.L().Error().Err(err).Msg("push: participants lookup failed")
		return
	}

	recipients := participants[:0]
	for _, p := range participants {
		if p != view.SenderID {
			recipients = append(recipients, p)
		}
	}
	if len(recipients) == 0 {
		return
	}

	subs, err := n.Store.SubscriptionsForUsers(ctx, recipients)
	if err != nil {
		logger.L().Error().Err(err).Msg("push: subscriptions lookup failed")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": view.Sender.Name + " sent a message",
		"body":  view.Text,
		"icon":  view.Sender.Avatar,
	})
	if err != nil {
		return
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &sub.Sub, &webpush.Options{
			Subscriber:      os.Getenv("VAPID_SUBSCRIBER"),
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		})
		if err != nil {
			logger.L().Warn().Err(err).Str("user_id", sub.UserID.Hex()).Msg("push send failed")
			continue
		}
		resp.Body.Close()
	}
}
