package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatter/models"
)

var (
	// ErrNotFound covers both "does not exist" and "caller is not a
	// participant" so membership can never be probed through error shapes.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate signals a uniqueness violation (email, username,
	// direct chat pair, participant already present).
	ErrDuplicate = errors.New("duplicate")
)

// ProfileUpdate carries the optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	Surname  *string
	Username *string
	Avatar   *string
}

type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	ListUsers(ctx context.Context, exclude primitive.ObjectID, search string, page, limit int) ([]models.PublicUser, int64, error)
	UpdateUserProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error)
	UpdateUserStatus(ctx context.Context, id primitive.ObjectID, status string) error

	// Chats
	CreateChat(ctx context.Context, chat *models.Chat) error
	FindDirectChat(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error)
	GetChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatView, error)
	ListChats(ctx context.Context, userID primitive.ObjectID) ([]models.ChatView, error)
	ChatIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	IsMember(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error)
	ChatParticipants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error)
	RenameChat(ctx context.Context, chatID, userID primitive.ObjectID, name string) (*models.ChatView, error)
	AddParticipant(ctx context.Context, chatID, userID, newUserID primitive.ObjectID) (*models.ChatView, error)
	RemoveParticipant(ctx context.Context, chatID, userID, targetID primitive.ObjectID) error

	// Messages
	SaveMessage(ctx context.Context, msg *models.Message) (*models.MessageView, error)
	ListMessages(ctx context.Context, chatID primitive.ObjectID, page, limit int) ([]models.MessageView, int64, error)
	MarkMessagesRead(ctx context.Context, chatID, readerID primitive.ObjectID) (int64, error)
	EditMessage(ctx context.Context, messageID, senderID primitive.ObjectID, text string) (*models.MessageView, error)
	DeleteMessage(ctx context.Context, messageID, senderID primitive.ObjectID) error

	// Push subscriptions
	SaveSubscription(ctx context.Context, sub *models.PushSubscription) error
	SubscriptionsForUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.PushSubscription, error)
}
