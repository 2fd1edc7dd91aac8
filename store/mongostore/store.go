// Package mongostore implements store.Store on top of MongoDB.
package mongostore

import (
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	db       *mongo.Database
	users    *mongo.Collection
	chats    *mongo.Collection
	messages *mongo.Collection
	subs     *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		users:    db.Collection("users"),
		chats:    db.Collection("chats"),
		messages: db.Collection("messages"),
		subs:     db.Collection("push_subscriptions"),
	}
}
