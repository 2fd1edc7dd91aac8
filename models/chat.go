package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Chat struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string               `bson:"name,omitempty" json:"name,omitempty"` // empty for direct chats
	IsGroup       bool                 `bson:"isGroup" json:"isGroup"`
	Participants  []primitive.ObjectID `bson:"participants" json:"participants"`
	CreatedBy     primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	LastMessage   *LastMessage         `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt int64                `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	Lifecycle     string               `bson:"lifecycle" json:"-"`
	CreatedAt     int64                `bson:"createdAt" json:"createdAt"`
	UpdatedAt     int64                `bson:"updatedAt" json:"updatedAt"`
}

// LastMessage is the preview cached on the chat document so chat lists
// don't need a second query per chat.
type LastMessage struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Text     string             `bson:"text" json:"text"`
	SenderID primitive.ObjectID `bson:"senderId" json:"senderId"`
	SentAt   int64              `bson:"sentAt" json:"sentAt"`
}

// ChatView is a Chat with its participant references resolved to
// directory projections, as returned by the REST API.
type ChatView struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	IsGroup       bool               `bson:"isGroup" json:"isGroup"`
	Participants  []PublicUser       `bson:"participants" json:"participants"`
	CreatedBy     primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	LastMessage   *LastMessage       `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt int64              `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt     int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt     int64              `bson:"updatedAt" json:"updatedAt"`
}
