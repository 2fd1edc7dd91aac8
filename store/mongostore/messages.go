package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatter/models"
	"chatter/store"
)

// SaveMessage inserts the message and updates the owning chat's last-message
// preview. Both writes run in a multi-document transaction when the
// deployment supports one; on a standalone server they fall back to
// sequential writes, the pointer update being non-critical.
func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (*models.MessageView, error) {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	now := time.Now().Unix()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	chatUpdate := bson.M{"$set": bson.M{
		"lastMessage": models.LastMessage{
			ID:       msg.ID,
			Text:     msg.Text,
			SenderID: msg.SenderID,
			SentAt:   msg.CreatedAt,
		},
		"lastMessageAt": msg.CreatedAt,
		"updatedAt":     now,
	}}

	writes := func(ctx context.Context) error {
		if _, err := s.messages.InsertOne(ctx, msg); err != nil {
			return err
		}
		_, err := s.chats.UpdateOne(ctx, bson.M{"_id": msg.ChatID}, chatUpdate)
		return err
	}

	if err := s.inTransaction(ctx, writes); err != nil {
		return nil, err
	}

	sender, err := s.messageSender(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}

	return &models.MessageView{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Text:        msg.Text,
		Attachments: msg.Attachments,
		IsRead:      msg.IsRead,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
		Sender:      sender,
	}, nil
}

func (s *Store) inTransaction(ctx context.Context, writes func(context.Context) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return writes(ctx)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, writes(sc)
	})
	if err != nil && transactionsUnsupported(err) {
		return writes(ctx)
	}
	return err
}

// transactionsUnsupported reports whether the error means the deployment
// (e.g. a standalone mongod) cannot run multi-document transactions at all.
func transactionsUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 { // IllegalOperation
		return true
	}
	return strings.Contains(err.Error(), "Transaction numbers are only allowed")
}

func (s *Store) messageSender(ctx context.Context, id primitive.ObjectID) (models.MessageSender, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		// Sender may have been soft-deleted since; keep the reference usable.
		return models.MessageSender{ID: id, Name: "Unknown"}, nil
	}
	if err != nil {
		return models.MessageSender{}, err
	}
	return models.MessageSender{
		ID:       user.ID,
		Name:     user.Name,
		Surname:  user.Surname,
		Username: user.Username,
		Avatar:   user.Avatar,
	}, nil
}

// ListMessages returns one page of a chat's history in ascending order.
// Pages are taken newest-first and reversed, so page 1 is always the most
// recent messages. Membership must be checked by the caller.
func (s *Store) ListMessages(ctx context.Context, chatID primitive.ObjectID, page, limit int) ([]models.MessageView, int64, error) {
	total, err := s.messages.CountDocuments(ctx, bson.M{"chatId": chatID})
	if err != nil {
		return nil, 0, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "chatId", Value: chatID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$skip", Value: int64((page - 1) * limit)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "senderId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "sender"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$sender"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	messages := []models.MessageView{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, err
	}

	// Newest-first fetch, ascending response.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, chatID, readerID primitive.ObjectID) (int64, error) {
	result, err := s.messages.UpdateMany(ctx,
		bson.M{
			"chatId":   chatID,
			"senderId": bson.M{"$ne": readerID},
			"isRead":   false,
		},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (s *Store) EditMessage(ctx context.Context, messageID, senderID primitive.ObjectID, text string) (*models.MessageView, error) {
	var msg models.Message
	err := s.messages.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "senderId": senderID},
		bson.M{"$set": bson.M{"text": text, "updatedAt": time.Now().Unix()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.messageSender(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}
	return &models.MessageView{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Text:        msg.Text,
		Attachments: msg.Attachments,
		IsRead:      msg.IsRead,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
		Sender:      sender,
	}, nil
}

func (s *Store) DeleteMessage(ctx context.Context, messageID, senderID primitive.ObjectID) error {
	result, err := s.messages.DeleteOne(ctx, bson.M{"_id": messageID, "senderId": senderID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
