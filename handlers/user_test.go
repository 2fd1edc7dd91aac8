package handlers_test

import (
	"net/http"
	"testing"
)

func TestUserDirectoryExcludesCaller(t *testing.T) {
	router, _ := setup(t)
	token, userID := registerUser(t, router, "alice")
	registerUser(t, router, "bob")
	registerUser(t, router, "carol")

	code, body := doJSON(t, router, "GET", "/api/users", token, nil)
	if code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", code)
	}
	users := body["users"].([]interface{})
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.(map[string]interface{})["id"] == userID {
			t.Error("directory should not include the caller")
		}
	}
}

func TestUserDirectorySearch(t *testing.T) {
	router, _ := setup(t)
	token, _ := registerUser(t, router, "alice")
	registerUser(t, router, "bobby")
	registerUser(t, router, "carol")

	code, body := doJSON(t, router, "GET", "/api/users?search=bob", token, nil)
	if code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", code)
	}
	users := body["users"].([]interface{})
	if len(users) != 1 {
		t.Fatalf("expected 1 match, got %d", len(users))
	}
	if users[0].(map[string]interface{})["username"] != "bobby" {
		t.Errorf("unexpected match: %v", users[0])
	}
}

func TestMeAndUpdateProfile(t *testing.T) {
	router, _ := setup(t)
	token, userID := registerUser(t, router, "alice")

	code, body := doJSON(t, router, "GET", "/api/users/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", code)
	}
	me := body["user"].(map[string]interface{})
	if me["id"] != userID || me["username"] != "alice" {
		t.Errorf("unexpected profile: %v", me)
	}

	code, body = doJSON(t, router, "PUT", "/api/users/me", token, map[string]string{
		"name":   "Alicia",
		"avatar": "https://cdn.example.com/a.png",
	})
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%v)", code, body)
	}
	updated := body["user"].(map[string]interface{})
	if updated["name"] != "Alicia" {
		t.Errorf("expected updated name, got %v", updated["name"])
	}
	// Untouched fields survive a partial update.
	if updated["surname"] != "User" {
		t.Errorf("expected surname preserved, got %v", updated["surname"])
	}
}

func TestUpdateProfileUsernameTaken(t *testing.T) {
	router, _ := setup(t)
	token, _ := registerUser(t, router, "alice")
	registerUser(t, router, "bob")

	code, _ := doJSON(t, router, "PUT", "/api/users/me", token, map[string]string{
		"username": "bob",
	})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for taken username, got %d", code)
	}
}

func TestUpdateStatus(t *testing.T) {
	router, _ := setup(t)
	token, userID := registerUser(t, router, "alice")
	bobToken, _ := registerUser(t, router, "bob")

	code, _ := doJSON(t, router, "PUT", "/api/users/me/status", token, map[string]string{
		"status": "online",
	})
	if code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", code)
	}

	code, _ = doJSON(t, router, "PUT", "/api/users/me/status", token, map[string]string{
		"status": "invisible",
	})
	if code != http.StatusBadRequest {
		t.Errorf("invalid status: expected 400, got %d", code)
	}

	code, body := doJSON(t, router, "GET", "/api/users/"+userID, bobToken, nil)
	if code != http.StatusOK {
		t.Fatalf("get by id: expected 200, got %d", code)
	}
	if body["user"].(map[string]interface{})["status"] != "online" {
		t.Errorf("expected online status, got %v", body["user"])
	}
}

func TestGetUserNotFound(t *testing.T) {
	router, _ := setup(t)
	token, _ := registerUser(t, router, "alice")

	code, _ := doJSON(t, router, "GET", "/api/users/64a000000000000000000000", token, nil)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	code, _ = doJSON(t, router, "GET", "/api/users/not-hex", token, nil)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", code)
	}
}
