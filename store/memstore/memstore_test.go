package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/models"
	"chatter/store"
)

func newUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()
	u := &models.User{
		Name:      "Test",
		Surname:   "User",
		Username:  username,
		Email:     username + "@example.com",
		Lifecycle: models.LifecycleActive,
		Status:    models.StatusOffline,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func newChat(t *testing.T, s *Store, isGroup bool, participants ...primitive.ObjectID) *models.Chat {
	t.Helper()
	c := &models.Chat{
		IsGroup:      isGroup,
		Participants: participants,
		CreatedBy:    participants[0],
	}
	if isGroup {
		c.Name = "Group"
	}
	if err := s.CreateChat(context.Background(), c); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	return c
}

func TestCreateUserDuplicate(t *testing.T) {
	s := New()
	newUser(t, s, "alice")

	dup := &models.User{
		Username:  "alice",
		Email:     "other@example.com",
		Lifecycle: models.LifecycleActive,
	}
	if err := s.CreateUser(context.Background(), dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestFindDirectChat(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	c := newUser(t, s, "carol")

	chat := newChat(t, s, false, a.ID, b.ID)

	found, err := s.FindDirectChat(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("FindDirectChat: %v", err)
	}
	if found.ID != chat.ID {
		t.Errorf("expected chat %s, got %s", chat.ID.Hex(), found.ID.Hex())
	}

	if _, err := s.FindDirectChat(ctx, a.ID, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for nonexistent pair, got %v", err)
	}
}

func TestGetChatNonMember(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	outsider := newUser(t, s, "mallory")

	chat := newChat(t, s, false, a.ID, b.ID)

	if _, err := s.GetChat(ctx, chat.ID, a.ID); err != nil {
		t.Fatalf("member GetChat: %v", err)
	}
	if _, err := s.GetChat(ctx, chat.ID, outsider.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-member, got %v", err)
	}
}

func TestRemoveParticipantDissolvesSmallChat(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	c := newUser(t, s, "carol")

	chat := newChat(t, s, true, a.ID, b.ID, c.ID)

	if err := s.RemoveParticipant(ctx, chat.ID, a.ID, c.ID); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if _, err := s.GetChat(ctx, chat.ID, a.ID); err != nil {
		t.Fatalf("chat should survive with two participants: %v", err)
	}

	// Dropping to one participant soft-deletes the chat.
	if err := s.RemoveParticipant(ctx, chat.ID, a.ID, b.ID); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if _, err := s.GetChat(ctx, chat.ID, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected dissolved chat to be gone, got %v", err)
	}
}

func TestSaveMessageUpdatesLastMessage(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	chat := newChat(t, s, false, a.ID, b.ID)

	view, err := s.SaveMessage(ctx, &models.Message{
		ChatID:   chat.ID,
		SenderID: a.ID,
		Text:     "hello",
	})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if view.Sender.Username != "alice" {
		t.Errorf("expected enriched sender, got %+v", view.Sender)
	}

	got, err := s.GetChat(ctx, chat.ID, b.ID)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got.LastMessage == nil || got.LastMessage.Text != "hello" {
		t.Errorf("expected last message preview, got %+v", got.LastMessage)
	}
}

func TestListMessagesPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	chat := newChat(t, s, false, a.ID, b.ID)

	for i := 0; i < 5; i++ {
		if _, err := s.SaveMessage(ctx, &models.Message{
			ChatID:   chat.ID,
			SenderID: a.ID,
			Text:     fmt.Sprintf("msg %d", i),
		}); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	// Page 1 is the newest two, returned in ascending order.
	page1, total, err := s.ListMessages(ctx, chat.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page1) != 2 || page1[0].Text != "msg 3" || page1[1].Text != "msg 4" {
		t.Errorf("unexpected page 1: %+v", page1)
	}

	page2, _, err := s.ListMessages(ctx, chat.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page2) != 2 || page2[0].Text != "msg 1" || page2[1].Text != "msg 2" {
		t.Errorf("unexpected page 2: %+v", page2)
	}

	// The last partial page.
	page3, _, err := s.ListMessages(ctx, chat.ID, 3, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page3) != 1 || page3[0].Text != "msg 0" {
		t.Errorf("unexpected page 3: %+v", page3)
	}

	// Past the end.
	page4, _, err := s.ListMessages(ctx, chat.ID, 4, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page4) != 0 {
		t.Errorf("expected empty page, got %+v", page4)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	chat := newChat(t, s, false, a.ID, b.ID)

	for i := 0; i < 3; i++ {
		if _, err := s.SaveMessage(ctx, &models.Message{ChatID: chat.ID, SenderID: a.ID, Text: "hi"}); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}
	if _, err := s.SaveMessage(ctx, &models.Message{ChatID: chat.ID, SenderID: b.ID, Text: "yo"}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	// Only the other side's messages are marked.
	n, err := s.MarkMessagesRead(ctx, chat.ID, b.ID)
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 marked, got %d", n)
	}

	n, err = s.MarkMessagesRead(ctx, chat.ID, b.ID)
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 on second pass, got %d", n)
	}
}

func TestEditAndDeleteMessageOwnership(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")
	b := newUser(t, s, "bob")
	chat := newChat(t, s, false, a.ID, b.ID)

	view, err := s.SaveMessage(ctx, &models.Message{ChatID: chat.ID, SenderID: a.ID, Text: "original"})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	if _, err := s.EditMessage(ctx, view.ID, b.ID, "hijacked"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-owner edit, got %v", err)
	}
	edited, err := s.EditMessage(ctx, view.ID, a.ID, "fixed")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if edited.Text != "fixed" {
		t.Errorf("expected edited text, got %q", edited.Text)
	}

	if err := s.DeleteMessage(ctx, view.ID, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-owner delete, got %v", err)
	}
	if err := s.DeleteMessage(ctx, view.ID, a.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if _, total, _ := s.ListMessages(ctx, chat.ID, 1, 10); total != 0 {
		t.Errorf("expected empty chat after delete, got %d", total)
	}
}

func TestSaveSubscriptionUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newUser(t, s, "alice")

	sub := &models.PushSubscription{UserID: a.ID}
	sub.Sub.Endpoint = "https://push.example.com/ep1"
	if err := s.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}

	again := &models.PushSubscription{UserID: a.ID}
	again.Sub.Endpoint = "https://push.example.com/ep1"
	if err := s.SaveSubscription(ctx, again); err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}

	subs, err := s.SubscriptionsForUsers(ctx, []primitive.ObjectID{a.ID})
	if err != nil {
		t.Fatalf("SubscriptionsForUsers: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("expected one subscription after upsert, got %d", len(subs))
	}
}
