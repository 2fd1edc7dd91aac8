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

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	count, err := s.users.CountDocuments(ctx, bson.M{
		"$or":       bson.A{bson.M{"email": user.Email}, bson.M{"username": user.Username}},
		"lifecycle": models.LifecycleActive,
	})
	if err != nil {
		return err
	}
	if count > 0 {
		return store.ErrDuplicate
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	_, err = s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{
		"_id":       id,
		"lifecycle": models.LifecycleActive,
	}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByLogin resolves a login that may be either an email or a username.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{
		"$or":       bson.A{bson.M{"email": login}, bson.M{"username": login}},
		"lifecycle": models.LifecycleActive,
	}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, exclude primitive.ObjectID, search string, page, limit int) ([]models.PublicUser, int64, error) {
	filter := bson.M{
		"_id":       bson.M{"$ne": exclude},
		"lifecycle": models.LifecycleActive,
	}
	if search != "" {
		re := primitive.Regex{Pattern: search, Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"surname": re},
			bson.M{"username": re},
		}
	}

	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "lastActivity", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	users := []models.PublicUser{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id primitive.ObjectID, upd store.ProfileUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().Unix()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Surname != nil {
		set["surname"] = *upd.Surname
	}
	if upd.Username != nil {
		count, err := s.users.CountDocuments(ctx, bson.M{
			"username":  *upd.Username,
			"_id":       bson.M{"$ne": id},
			"lifecycle": models.LifecycleActive,
		})
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, store.ErrDuplicate
		}
		set["username"] = *upd.Username
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}

	var user models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "lifecycle": models.LifecycleActive},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, store.ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	now := time.Now().Unix()
	result, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id, "lifecycle": models.LifecycleActive},
		bson.M{"$set": bson.M{"status": status, "lastActivity": now, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
