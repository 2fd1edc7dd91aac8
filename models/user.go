package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Lifecycle marks whether a document is live or soft-deleted. Deleted
// documents stay in the collection but are invisible to every query.
const (
	LifecycleActive  = "active"
	LifecycleDeleted = "deleted"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Surname      string             `bson:"surname" json:"surname"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar"`
	Status       string             `bson:"status" json:"status"`
	LastActivity int64              `bson:"lastActivity" json:"lastActivity"`
	Lifecycle    string             `bson:"lifecycle" json:"-"`
	CreatedAt    int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt    int64              `bson:"updatedAt" json:"updatedAt"`
}

// PublicUser is the directory projection of a user: everything another
// user is allowed to see.
type PublicUser struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Surname      string             `bson:"surname" json:"surname"`
	Username     string             `bson:"username" json:"username"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar"`
	Status       string             `bson:"status" json:"status"`
	LastActivity int64              `bson:"lastActivity" json:"lastActivity"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Name:         u.Name,
		Surname:      u.Surname,
		Username:     u.Username,
		Avatar:       u.Avatar,
		Status:       u.Status,
		LastActivity: u.LastActivity,
	}
}
