package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"chatter/routes"
	"chatter/store/memstore"
	"chatter/websocket"
)

// setup builds a full router over the in-memory store, with the realtime
// manager running.
func setup(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	manager := websocket.NewManager(st)
	go manager.Start()
	return routes.SetupRouter(st, manager), st
}

// doJSON performs one request and decodes the JSON body into a map.
func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	decoded := map[string]interface{}{}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr.Code, decoded
}

// registerUser creates an account through the API and returns its token
// and user id.
func registerUser(t *testing.T, router *gin.Engine, username string) (token, userID string) {
	t.Helper()

	code, body := doJSON(t, router, "POST", "/api/auth/register", "", map[string]interface{}{
		"name":     "Test",
		"surname":  "User",
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	if code != 201 {
		t.Fatalf("register %s: expected 201, got %d (%v)", username, code, body)
	}
	token, _ = body["token"].(string)
	userID, _ = body["userId"].(string)
	if token == "" || userID == "" {
		t.Fatalf("register %s: missing token or userId in %v", username, body)
	}
	return token, userID
}

// createDirectChat creates a two-person chat and returns its id.
func createDirectChat(t *testing.T, router *gin.Engine, token, otherID string) string {
	t.Helper()

	code, body := doJSON(t, router, "POST", "/api/chats", token, map[string]interface{}{
		"isGroup":      false,
		"participants": []string{otherID},
	})
	if code != 201 {
		t.Fatalf("create chat: expected 201, got %d (%v)", code, body)
	}
	chat, _ := body["chat"].(map[string]interface{})
	id, _ := chat["id"].(string)
	if id == "" {
		t.Fatalf("create chat: missing id in %v", body)
	}
	return id
}
