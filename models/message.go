package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID      primitive.ObjectID `bson:"chatId" json:"chatId"`
	SenderID    primitive.ObjectID `bson:"senderId" json:"senderId"`
	Text        string             `bson:"text" json:"text"`
	Attachments []string           `bson:"attachments" json:"attachments"`
	IsRead      bool               `bson:"isRead" json:"isRead"`
	CreatedAt   int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt   int64              `bson:"updatedAt" json:"updatedAt"`
}

// MessageSender is the slice of a user joined onto a message for display.
type MessageSender struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Surname  string             `bson:"surname" json:"surname"`
	Username string             `bson:"username" json:"username"`
	Avatar   string             `bson:"avatar" json:"avatar"`
}

// MessageView is a Message enriched with its sender's display fields.
// This is both the REST history item and the realtime new_message payload.
type MessageView struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	ChatID      primitive.ObjectID `bson:"chatId" json:"chatId"`
	SenderID    primitive.ObjectID `bson:"senderId" json:"senderId"`
	Text        string             `bson:"text" json:"text"`
	Attachments []string           `bson:"attachments" json:"attachments"`
	IsRead      bool               `bson:"isRead" json:"isRead"`
	CreatedAt   int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt   int64              `bson:"updatedAt" json:"updatedAt"`
	Sender      MessageSender      `bson:"sender" json:"sender"`
}
