package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asiradnan/SoulSpeak/internal/models"
	"github.com/asiradnan/SoulSpeak/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationStore is the durable source of truth for conversations.
type ConversationStore interface {
	FindByParticipants(ctx context.Context, userA, userB string) (*models.Conversation, error)
	Create(ctx context.Context, userA, userB string) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id string, msg models.Message, recipients []string) (*models.Conversation, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

// UserDirectory resolves user ids to public profile fields for responses.
type UserDirectory interface {
	Profile(ctx context.Context, userID string) (*models.PublicProfile, error)
}

// Notifier pushes events to live connections. Failures never fail a write.
type Notifier interface {
	NotifyRoom(conversationID string, event any) error
	NotifyRoomExcept(conversationID, exceptUserID string, event any) error
	NotifyUser(userID string, event any) error
}

type ChatService struct {
	store           ConversationStore
	users           UserDirectory
	gateway         Notifier
	log             *zap.Logger
	maxContentRunes int
}

func NewChatService(store ConversationStore, users UserDirectory, gateway Notifier, maxContentRunes int, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	if maxContentRunes <= 0 {
		maxContentRunes = 4000
	}
	return &ChatService{store: store, users: users, gateway: gateway, log: log, maxContentRunes: maxContentRunes}
}

// CreateOrGetConversation returns the existing conversation for the pair or
// creates it, reporting which of the two happened. Concurrent creates for the
// same pair are serialized by the store's unique pair key; the loser re-reads
// the winner's document. Both participants get a newChat event on their
// personal channel either way, so any open session refreshes its list.
func (s *ChatService) CreateOrGetConversation(ctx context.Context, requesterID, otherID string) (*models.ConversationView, bool, error) {
	if otherID == "" {
		return nil, false, fmt.Errorf("participantId required: %w", ErrValidation)
	}
	if otherID == requesterID {
		return nil, false, fmt.Errorf("cannot start a conversation with yourself: %w", ErrValidation)
	}
	if _, err := s.users.Profile(ctx, otherID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("user %s: %w", otherID, ErrNotFound)
		}
		return nil, false, s.internal("resolve participant", err)
	}

	created := false
	conv, err := s.store.FindByParticipants(ctx, requesterID, otherID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, s.internal("find conversation", err)
	}
	if conv == nil {
		conv, err = s.store.Create(ctx, requesterID, otherID)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, repository.ErrDuplicatePair):
			// lost the race; the winner's conversation is there now
			conv, err = s.store.FindByParticipants(ctx, requesterID, otherID)
		}
		if err != nil {
			if errors.Is(err, repository.ErrSelfPair) {
				return nil, false, fmt.Errorf("cannot start a conversation with yourself: %w", ErrValidation)
			}
			return nil, false, s.internal("create conversation", err)
		}
	}

	view := s.populate(ctx, conv)
	for _, p := range conv.Participants {
		s.fanOutUser(p, newConversationEvent(*view))
	}
	return view, created, nil
}

// SendMessage appends durably, then fans out. The first message additionally
// announces the conversation on both personal channels, since the recipient
// may never have seen it in their list before it had any messages.
func (s *ChatService) SendMessage(ctx context.Context, senderID, conversationID, content string) (*models.ConversationView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.maxContentRunes {
		return nil, fmt.Errorf("message content too long: %w", ErrValidation)
	}

	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, s.internal("load conversation", err)
	}
	if !conv.IsParticipant(senderID) {
		return nil, fmt.Errorf("not a participant: %w", ErrForbidden)
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		ReadBy:    []string{senderID},
	}
	updated, err := s.store.AppendMessage(ctx, conversationID, msg, conv.OtherParticipants(senderID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, s.internal("append message", err)
	}

	view := s.populate(ctx, updated)
	s.fanOutRoom(conversationID, newMessageEvent(conversationID, s.messageView(ctx, msg)))
	if len(updated.Messages) == 1 {
		for _, p := range updated.Participants {
			s.fanOutUser(p, newConversationEvent(*view))
		}
	}
	return view, nil
}

func (s *ChatService) MarkMessagesRead(ctx context.Context, userID, conversationID string) (*models.ConversationView, error) {
	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, s.internal("load conversation", err)
	}
	if !conv.IsParticipant(userID) {
		return nil, fmt.Errorf("not a participant: %w", ErrForbidden)
	}

	updated, err := s.store.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return nil, s.internal("mark read", err)
	}

	s.fanOutRoomExcept(conversationID, userID, messagesReadEvent(conversationID, userID))
	return s.populate(ctx, updated), nil
}

func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]*models.ConversationView, error) {
	convs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list conversations", err)
	}
	out := make([]*models.ConversationView, 0, len(convs))
	for _, c := range convs {
		out = append(out, s.populate(ctx, c))
	}
	return out, nil
}

func (s *ChatService) populate(ctx context.Context, conv *models.Conversation) *models.ConversationView {
	profiles := make(map[string]models.PublicProfile, len(conv.Participants))
	view := &models.ConversationView{
		ID:              conv.ID.Hex(),
		Participants:    make([]models.PublicProfile, 0, len(conv.Participants)),
		Messages:        make([]models.MessageView, 0, len(conv.Messages)),
		LastMessageTime: conv.LastMessageTime,
		Unread:          conv.Unread,
		CreatedAt:       conv.CreatedAt,
	}
	for _, id := range conv.Participants {
		p := s.profileOrStub(ctx, id)
		profiles[id] = p
		view.Participants = append(view.Participants, p)
	}
	for _, m := range conv.Messages {
		sender, ok := profiles[m.SenderID]
		if !ok {
			sender = s.profileOrStub(ctx, m.SenderID)
			profiles[m.SenderID] = sender
		}
		view.Messages = append(view.Messages, models.MessageView{
			ID:        m.ID,
			Sender:    sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			ReadBy:    m.ReadBy,
		})
	}
	return view
}

func (s *ChatService) messageView(ctx context.Context, m models.Message) models.MessageView {
	return models.MessageView{
		ID:        m.ID,
		Sender:    s.profileOrStub(ctx, m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		ReadBy:    m.ReadBy,
	}
}

// profileOrStub degrades to a bare-id profile when the user record is gone,
// so a deleted account never breaks history rendering.
func (s *ChatService) profileOrStub(ctx context.Context, userID string) models.PublicProfile {
	p, err := s.users.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("profile lookup failed", zap.String("user", userID), zap.Error(err))
		}
		return models.PublicProfile{ID: userID}
	}
	return *p
}

func (s *ChatService) fanOutRoom(conversationID string, event any) {
	if s.gateway == nil {
		s.log.Warn("room fan-out skipped", zap.String("conversation", conversationID), zap.Error(ErrGatewayUnavailable))
		return
	}
	if err := s.gateway.NotifyRoom(conversationID, event); err != nil {
		s.log.Warn("room fan-out failed", zap.String("conversation", conversationID), zap.Error(err))
	}
}

func (s *ChatService) fanOutRoomExcept(conversationID, exceptUserID string, event any) {
	if s.gateway == nil {
		s.log.Warn("room fan-out skipped", zap.String("conversation", conversationID), zap.Error(ErrGatewayUnavailable))
		return
	}
	if err := s.gateway.NotifyRoomExcept(conversationID, exceptUserID, event); err != nil {
		s.log.Warn("room fan-out failed", zap.String("conversation", conversationID), zap.Error(err))
	}
}

func (s *ChatService) fanOutUser(userID string, event any) {
	if s.gateway == nil {
		s.log.Warn("user fan-out skipped", zap.String("user", userID), zap.Error(ErrGatewayUnavailable))
		return
	}
	if err := s.gateway.NotifyUser(userID, event); err != nil {
		s.log.Warn("user fan-out failed", zap.String("user", userID), zap.Error(err))
	}
}

// internal logs the cause with context and returns an opaque error kind.
func (s *ChatService) internal(op string, err error) error {
	s.log.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, ErrInternal)
}
