package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/auth"
	"chatter/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler authenticates the handshake and upgrades the connection.
// An unresolvable credential ends the connection before it exists: the
// request is rejected with 401 and nothing is registered.
func Handler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		if _, err := m.store.GetUserByID(ctx, userID); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.L().Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			id:      uuid.New().String(),
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, 256),
			done:    make(chan struct{}),
			manager: m,
		}

		m.register <- client

		client.sendEvent("connected", map[string]interface{}{
			"userId": userID.Hex(),
			"time":   time.Now().Unix(),
		})

		go client.writePump()
		go client.readPump()
	}
}
