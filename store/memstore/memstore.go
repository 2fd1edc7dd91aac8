// Package memstore is an in-memory store.Store used by tests. It mirrors
// mongostore's filtering and ordering semantics without a running server.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/models"
	"chatter/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]*models.User
	chats    map[primitive.ObjectID]*models.Chat
	messages []*models.Message // insertion order
	subs     []*models.PushSubscription
}

func New() *Store {
	return &Store{
		users: make(map[primitive.ObjectID]*models.User),
		chats: make(map[primitive.ObjectID]*models.Chat),
	}
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Lifecycle != models.LifecycleActive {
			continue
		}
		if u.Email == user.Email || u.Username == user.Username {
			return store.ErrDuplicate
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.Lifecycle != models.LifecycleActive {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Lifecycle != models.LifecycleActive {
			continue
		}
		if u.Email == login || u.Username == login {
			clone := *u
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context, exclude primitive.ObjectID, search string, page, limit int) ([]models.PublicUser, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.PublicUser{}
	needle := strings.ToLower(search)
	for _, u := range s.users {
		if u.ID == exclude || u.Lifecycle != models.LifecycleActive {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Surname), needle) &&
			!strings.Contains(strings.ToLower(u.Username), needle) {
			continue
		}
		matched = append(matched, u.Public())
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastActivity > matched[j].LastActivity
	})

	total := int64(len(matched))
	return paginate(matched, page, limit), total, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id primitive.ObjectID, upd store.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Lifecycle != models.LifecycleActive {
		return nil, store.ErrNotFound
	}

	if upd.Username != nil {
		for _, other := range s.users {
			if other.ID != id && other.Lifecycle == models.LifecycleActive && other.Username == *upd.Username {
				return nil, store.ErrDuplicate
			}
		}
		u.Username = *upd.Username
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Surname != nil {
		u.Surname = *upd.Surname
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	u.UpdatedAt = time.Now().Unix()

	clone := *u
	return &clone, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Lifecycle != models.LifecycleActive {
		return store.ErrNotFound
	}
	now := time.Now().Unix()
	u.Status = status
	u.LastActivity = now
	u.UpdatedAt = now
	return nil
}

// ---- chats ----

func (s *Store) CreateChat(ctx context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	now := time.Now().Unix()
	chat.Lifecycle = models.LifecycleActive
	chat.CreatedAt = now
	chat.UpdatedAt = now

	clone := *chat
	clone.Participants = append([]primitive.ObjectID(nil), chat.Participants...)
	s.chats[chat.ID] = &clone
	return nil
}

func (s *Store) FindDirectChat(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.chats {
		if c.IsGroup || c.Lifecycle != models.LifecycleActive || len(c.Participants) != 2 {
			continue
		}
		if contains(c.Participants, a) && contains(c.Participants, b) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) view(c *models.Chat) models.ChatView {
	participants := make([]models.PublicUser, 0, len(c.Participants))
	for _, id := range c.Participants {
		if u, ok := s.users[id]; ok {
			participants = append(participants, u.Public())
		}
	}
	return models.ChatView{
		ID:            c.ID,
		Name:          c.Name,
		IsGroup:       c.IsGroup,
		Participants:  participants,
		CreatedBy:     c.CreatedBy,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (s *Store) GetChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok || c.Lifecycle != models.LifecycleActive || !contains(c.Participants, userID) {
		return nil, store.ErrNotFound
	}
	v := s.view(c)
	return &v, nil
}

func (s *Store) ListChats(ctx context.Context, userID primitive.ObjectID) ([]models.ChatView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := []models.ChatView{}
	for _, c := range s.chats {
		if c.Lifecycle == models.LifecycleActive && contains(c.Participants, userID) {
			views = append(views, s.view(c))
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].LastMessageAt != views[j].LastMessageAt {
			return views[i].LastMessageAt > views[j].LastMessageAt
		}
		return views[i].CreatedAt > views[j].CreatedAt
	})
	return views, nil
}

func (s *Store) ChatIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []primitive.ObjectID{}
	for _, c := range s.chats {
		if c.Lifecycle == models.LifecycleActive && contains(c.Participants, userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *Store) IsMember(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	return ok && c.Lifecycle == models.LifecycleActive && contains(c.Participants, userID), nil
}

func (s *Store) ChatParticipants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok || c.Lifecycle != models.LifecycleActive {
		return nil, store.ErrNotFound
	}
	return append([]primitive.ObjectID(nil), c.Participants...), nil
}

func (s *Store) RenameChat(ctx context.Context, chatID, userID primitive.ObjectID, name string) (*models.ChatView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok || c.Lifecycle != models.LifecycleActive || !c.IsGroup || !contains(c.Participants, userID) {
		return nil, store.ErrNotFound
	}
	c.Name = name
	c.UpdatedAt = time.Now().Unix()
	v := s.view(c)
	return &v, nil
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID, newUserID primitive.ObjectID) (*models.ChatView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[newUserID]
	if !ok || u.Lifecycle != models.LifecycleActive {
		return nil, store.ErrNotFound
	}

	c, ok := s.chats[chatID]
	if !ok || c.Lifecycle != models.LifecycleActive || !c.IsGroup || !contains(c.Participants, userID) {
		return nil, store.ErrNotFound
	}
	if contains(c.Participants, newUserID) {
		return nil, store.ErrDuplicate
	}

	c.Participants = append(c.Participants, newUserID)
	c.UpdatedAt = time.Now().Unix()
	v := s.view(c)
	return &v, nil
}

func (s *Store) RemoveParticipant(ctx context.Context, chatID, userID, targetID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok || c.Lifecycle != models.LifecycleActive || !c.IsGroup || !contains(c.Participants, userID) {
		return store.ErrNotFound
	}

	kept := c.Participants[:0]
	for _, p := range c.Participants {
		if p != targetID {
			kept = append(kept, p)
		}
	}
	c.Participants = kept
	c.UpdatedAt = time.Now().Unix()

	if len(c.Participants) < 2 {
		c.Lifecycle = models.LifecycleDeleted
	}
	return nil
}

// ---- messages ----

func (s *Store) sender(id primitive.ObjectID) models.MessageSender {
	if u, ok := s.users[id]; ok {
		return models.MessageSender{
			ID:       u.ID,
			Name:     u.Name,
			Surname:  u.Surname,
			Username: u.Username,
			Avatar:   u.Avatar,
		}
	}
	return models.MessageSender{ID: id, Name: "Unknown"}
}

func (s *Store) msgView(m *models.Message) models.MessageView {
	return models.MessageView{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		Text:        m.Text,
		Attachments: append([]string(nil), m.Attachments...),
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Sender:      s.sender(m.SenderID),
	}
}

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (*models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	now := time.Now().Unix()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	clone := *msg
	s.messages = append(s.messages, &clone)

	if c, ok := s.chats[msg.ChatID]; ok {
		c.LastMessage = &models.LastMessage{
			ID:       msg.ID,
			Text:     msg.Text,
			SenderID: msg.SenderID,
			SentAt:   msg.CreatedAt,
		}
		c.LastMessageAt = msg.CreatedAt
		c.UpdatedAt = now
	}

	v := s.msgView(&clone)
	return &v, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID primitive.ObjectID, page, limit int) ([]models.MessageView, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inChat := []*models.Message{}
	for _, m := range s.messages {
		if m.ChatID == chatID {
			inChat = append(inChat, m)
		}
	}
	total := int64(len(inChat))

	// Page newest-first, then return the page ascending.
	start := len(inChat) - page*limit
	end := start + limit
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}
	if end > len(inChat) {
		end = len(inChat)
	}

	views := make([]models.MessageView, 0, end-start)
	for _, m := range inChat[start:end] {
		views = append(views, s.msgView(m))
	}
	return views, total, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, chatID, readerID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.ChatID == chatID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) EditMessage(ctx context.Context, messageID, senderID primitive.ObjectID, text string) (*models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == messageID && m.SenderID == senderID {
			m.Text = text
			m.UpdatedAt = time.Now().Unix()
			v := s.msgView(m)
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteMessage(ctx context.Context, messageID, senderID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == messageID && m.SenderID == senderID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// ---- push subscriptions ----

func (s *Store) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.CreatedAt = time.Now().Unix()
	for i, existing := range s.subs {
		if existing.UserID == sub.UserID && existing.Sub.Endpoint == sub.Sub.Endpoint {
			clone := *sub
			clone.ID = existing.ID
			s.subs[i] = &clone
			return nil
		}
	}
	clone := *sub
	clone.ID = primitive.NewObjectID()
	s.subs = append(s.subs, &clone)
	return nil
}

func (s *Store) SubscriptionsForUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.PushSubscription{}
	for _, sub := range s.subs {
		if contains(userIDs, sub.UserID) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func paginate(users []models.PublicUser, page, limit int) []models.PublicUser {
	start := (page - 1) * limit
	if start >= len(users) {
		return []models.PublicUser{}
	}
	end := start + limit
	if end > len(users) {
		end = len(users)
	}
	return users[start:end]
}
