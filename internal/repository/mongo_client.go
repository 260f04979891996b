package repository

import (
	"context"
	"errors"
	"time"

	"github.com/asiradnan/SoulSpeak/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicatePair = errors.New("conversation already exists for pair")
	ErrSelfPair      = errors.New("participants must differ")
	ErrEmptyMessage  = errors.New("message content is empty")
)

func NewMongoClient(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}
