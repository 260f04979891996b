package repository

import (
	"context"
	"strings"
	"time"

	"github.com/asiradnan/SoulSpeak/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	coll := db.Collection("conversations")
	// unique pair key serializes concurrent create-or-get for the same two users
	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "participants_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("participants_key_uniq"),
	})
	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_time", Value: -1}},
		Options: options.Index().SetName("participants_activity_idx"),
	})
	return &ConversationRepository{coll: coll}
}

func (r *ConversationRepository) FindByParticipants(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"participants_key": models.PairKey(userA, userB)}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&c)
	return &c, nil
}

func (r *ConversationRepository) Create(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfPair
	}
	c := &models.Conversation{
		ID:              primitive.NewObjectID(),
		Participants:    []string{userA, userB},
		ParticipantsKey: models.PairKey(userA, userB),
		Messages:        []models.Message{},
		Unread:          map[string]int{},
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicatePair
		}
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&c)
	return &c, nil
}

// AppendMessage pushes the message, bumps last_message_time and increments the
// unread counter of every recipient in one update, so concurrent sends on the
// same conversation cannot lose counter increments.
func (r *ConversationRepository) AppendMessage(ctx context.Context, id string, msg models.Message, recipients []string) (*models.Conversation, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyMessage
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	inc := bson.M{}
	for _, uid := range recipients {
		inc["unread."+uid] = 1
	}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"last_message_time": msg.CreatedAt},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	res := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var c models.Conversation
	if err := res.Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&c)
	return &c, nil
}

// MarkRead adds userID to every message's read_by and zeroes their counter.
// $addToSet keeps read_by monotonic under repeated calls.
func (r *ConversationRepository) MarkRead(ctx context.Context, id, userID string) (*models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	update := bson.M{
		"$addToSet": bson.M{"messages.$[].read_by": userID},
		"$set":      bson.M{"unread." + userID: 0},
	}
	res := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var c models.Conversation
	if err := res.Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&c)
	return &c, nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Conversation{}
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		normalize(&c)
		out = append(out, &c)
	}
	return out, cur.Err()
}

func normalize(c *models.Conversation) {
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	if c.Unread == nil {
		c.Unread = map[string]int{}
	}
	for i := range c.Messages {
		if c.Messages[i].ReadBy == nil {
			c.Messages[i].ReadBy = []string{}
		}
	}
}
