package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatter/models"
	"chatter/store"
)

// chatViews runs the shared aggregation that resolves participant ids to
// their directory projections.
func (s *Store) chatViews(ctx context.Context, match bson.D) ([]models.ChatView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "participants"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "participants"},
		}}},
	}

	cursor, err := s.chats.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []models.ChatView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	now := time.Now().Unix()
	chat.Lifecycle = models.LifecycleActive
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := s.chats.InsertOne(ctx, chat)
	return err
}

func (s *Store) FindDirectChat(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{
		"isGroup":      false,
		"lifecycle":    models.LifecycleActive,
		"participants": bson.M{"$all": bson.A{a, b}, "$size": 2},
	}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *Store) GetChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.ChatView, error) {
	views, err := s.chatViews(ctx, bson.D{
		{Key: "_id", Value: chatID},
		{Key: "participants", Value: userID},
		{Key: "lifecycle", Value: models.LifecycleActive},
	})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, store.ErrNotFound
	}
	return &views[0], nil
}

func (s *Store) ListChats(ctx context.Context, userID primitive.ObjectID) ([]models.ChatView, error) {
	return s.chatViews(ctx, bson.D{
		{Key: "participants", Value: userID},
		{Key: "lifecycle", Value: models.LifecycleActive},
	})
}

func (s *Store) ChatIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.chats.Find(ctx,
		bson.M{"participants": userID, "lifecycle": models.LifecycleActive},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *Store) IsMember(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error) {
	count, err := s.chats.CountDocuments(ctx, bson.M{
		"_id":          chatID,
		"participants": userID,
		"lifecycle":    models.LifecycleActive,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ChatParticipants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{
		"_id":       chatID,
		"lifecycle": models.LifecycleActive,
	}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chat.Participants, nil
}

func (s *Store) RenameChat(ctx context.Context, chatID, userID primitive.ObjectID, name string) (*models.ChatView, error) {
	result, err := s.chats.UpdateOne(ctx,
		bson.M{
			"_id":          chatID,
			"participants": userID,
			"isGroup":      true,
			"lifecycle":    models.LifecycleActive,
		},
		bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now().Unix()}},
	)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetChat(ctx, chatID, userID)
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID, newUserID primitive.ObjectID) (*models.ChatView, error) {
	if _, err := s.GetUserByID(ctx, newUserID); err != nil {
		return nil, err
	}

	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{
		"_id":          chatID,
		"participants": userID,
		"isGroup":      true,
		"lifecycle":    models.LifecycleActive,
	}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	for _, p := range chat.Participants {
		if p == newUserID {
			return nil, store.ErrDuplicate
		}
	}

	_, err = s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$addToSet": bson.M{"participants": newUserID},
			"$set":      bson.M{"updatedAt": time.Now().Unix()},
		},
	)
	if err != nil {
		return nil, err
	}
	return s.GetChat(ctx, chatID, userID)
}

// RemoveParticipant pulls targetID out of a group chat. When fewer than two
// participants remain the chat is soft-deleted rather than left dangling.
func (s *Store) RemoveParticipant(ctx context.Context, chatID, userID, targetID primitive.ObjectID) error {
	result, err := s.chats.UpdateOne(ctx,
		bson.M{
			"_id":          chatID,
			"participants": userID,
			"isGroup":      true,
			"lifecycle":    models.LifecycleActive,
		},
		bson.M{
			"$pull": bson.M{"participants": targetID},
			"$set":  bson.M{"updatedAt": time.Now().Unix()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}

	_, err = s.chats.UpdateOne(ctx,
		bson.M{
			"_id":            chatID,
			"participants.1": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"lifecycle": models.LifecycleDeleted}},
	)
	return err
}
