package repository

import (
	"context"

	"github.com/asiradnan/SoulSpeak/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// OnlineChecker reports live presence; backed by the redis presence store.
type OnlineChecker interface {
	IsOnline(ctx context.Context, userID string) bool
}

type UserRepository struct {
	coll   *mongo.Collection
	online OnlineChecker
}

func NewUserRepository(db *mongo.Database, online OnlineChecker) *UserRepository {
	return &UserRepository{coll: db.Collection("users"), online: online}
}

func (r *UserRepository) Profile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := &models.PublicProfile{
		ID:             u.ID.Hex(),
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		IsCompanion:    u.IsCompanion,
	}
	if r.online != nil {
		p.IsOnline = r.online.IsOnline(ctx, p.ID)
	}
	return p, nil
}
