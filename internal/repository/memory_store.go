package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asiradnan/SoulSpeak/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryConversationStore mirrors the Mongo repository's semantics in memory,
// including the pair uniqueness guarantee. Used by tests and local runs
// without a database.
type MemoryConversationStore struct {
	mu     sync.Mutex
	byID   map[string]*models.Conversation
	byPair map[string]string
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		byID:   make(map[string]*models.Conversation),
		byPair: make(map[string]string),
	}
}

func (s *MemoryConversationStore) FindByParticipants(_ context.Context, userA, userB string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[models.PairKey(userA, userB)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryConversationStore) Create(_ context.Context, userA, userB string) (*models.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfPair
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairKey(userA, userB)
	if _, ok := s.byPair[key]; ok {
		return nil, ErrDuplicatePair
	}
	c := &models.Conversation{
		ID:              primitive.NewObjectID(),
		Participants:    []string{userA, userB},
		ParticipantsKey: key,
		Messages:        []models.Message{},
		Unread:          map[string]int{},
		CreatedAt:       time.Now().UTC(),
	}
	s.byID[c.ID.Hex()] = c
	s.byPair[key] = c.ID.Hex()
	return clone(c), nil
}

func (s *MemoryConversationStore) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (s *MemoryConversationStore) AppendMessage(_ context.Context, id string, msg models.Message, recipients []string) (*models.Conversation, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Messages = append(c.Messages, msg)
	t := msg.CreatedAt
	c.LastMessageTime = &t
	for _, uid := range recipients {
		c.Unread[uid]++
	}
	return clone(c), nil
}

func (s *MemoryConversationStore) MarkRead(_ context.Context, id, userID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range c.Messages {
		if !contains(c.Messages[i].ReadBy, userID) {
			c.Messages[i].ReadBy = append(c.Messages[i].ReadBy, userID)
		}
	}
	c.Unread[userID] = 0
	return clone(c), nil
}

func (s *MemoryConversationStore) ListForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Conversation{}
	for _, c := range s.byID {
		if c.IsParticipant(userID) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageTime, out[j].LastMessageTime
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return out, nil
}

func clone(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Messages = make([]models.Message, len(c.Messages))
	for i, m := range c.Messages {
		cp.Messages[i] = m
		cp.Messages[i].ReadBy = append([]string(nil), m.ReadBy...)
	}
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Unread = make(map[string]int, len(c.Unread))
	for k, v := range c.Unread {
		cp.Unread[k] = v
	}
	if c.LastMessageTime != nil {
		t := *c.LastMessageTime
		cp.LastMessageTime = &t
	}
	return &cp
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
