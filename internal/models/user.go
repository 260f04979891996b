package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username       string             `bson:"username" json:"username"`
	Email          string             `bson:"email" json:"email"`
	ProfilePicture string             `bson:"profilePicture,omitempty" json:"profilePicture,omitempty"`
	IsCompanion    bool               `bson:"isCompanion" json:"isCompanion"`
	Role           string             `bson:"role,omitempty" json:"role,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// PublicProfile is the subset of a user safe to embed in chat responses.
// It is a presentation concern; conversations store bare user ids.
type PublicProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	IsCompanion    bool   `json:"isCompanion"`
	IsOnline       bool   `json:"isOnline"`
}
