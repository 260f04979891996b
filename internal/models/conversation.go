package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is embedded in its conversation document and never stored on its own.
// Sender, content and created_at are immutable after append; only read_by grows.
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	SenderID  string    `bson:"sender_id" json:"senderId"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"timestamp"`
	ReadBy    []string  `bson:"read_by" json:"readBy"`
}

type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants []string           `bson:"participants" json:"participants"`
	// ParticipantsKey is the sorted pair key backing the uniqueness index,
	// so two users can never end up with more than one conversation.
	ParticipantsKey string         `bson:"participants_key" json:"-"`
	Messages        []Message      `bson:"messages" json:"messages"`
	LastMessageTime *time.Time     `bson:"last_message_time,omitempty" json:"lastMessageTime,omitempty"`
	Unread          map[string]int `bson:"unread" json:"unreadCount"`
	CreatedAt       time.Time      `bson:"created_at" json:"createdAt"`
}

// PairKey returns the canonical key for an unordered participant pair.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

func (c *Conversation) IsParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

func (c *Conversation) UnreadFor(userID string) int {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[userID]
}
