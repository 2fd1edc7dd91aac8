package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatter/models"
)

func (s *Store) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	// The zero ID is omitted from the replacement document so an upsert
	// over an existing subscription keeps its _id.
	sub.ID = primitive.NilObjectID
	sub.CreatedAt = time.Now().Unix()

	_, err := s.subs.ReplaceOne(ctx,
		bson.M{"userId": sub.UserID, "sub.endpoint": sub.Sub.Endpoint},
		sub,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) SubscriptionsForUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.PushSubscription, error) {
	cursor, err := s.subs.Find(ctx, bson.M{"userId": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	subs := []models.PushSubscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}
