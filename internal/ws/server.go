package ws

import (
	"context"
	"time"

	"github.com/asiradnan/SoulSpeak/internal/auth"
	"github.com/asiradnan/SoulSpeak/internal/models"
	"github.com/asiradnan/SoulSpeak/internal/presence"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type typingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"chatId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
}

type stopTypingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"chatId"`
}

type profileSource interface {
	Profile(ctx context.Context, userID string) (*models.PublicProfile, error)
}

type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
}

// Server owns the gateway side: it authenticates the handshake, pumps each
// connection, and relays room- and user-scoped events through the registry.
type Server struct {
	registry *presence.Registry
	jv       *auth.Validator
	profiles profileSource
	online   *presence.OnlineStore
	log      *zap.Logger

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
}

func NewServer(registry *presence.Registry, jv *auth.Validator, profiles profileSource, online *presence.OnlineStore, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMsgSize <= 0 {
		opts.MaxMsgSize = 65536
	}
	return &Server{
		registry:      registry,
		jv:            jv,
		profiles:      profiles,
		online:        online,
		log:           log,
		pingInterval:  opts.PingInterval,
		writeDeadline: opts.WriteDeadline,
		maxMsgSize:    opts.MaxMsgSize,
	}
}

// HandleWS runs for the lifetime of one connection. The capability token must
// validate before the connection is registered anywhere; room membership is
// whatever the client joins afterwards and is not restored on reconnect.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		userID, err := s.jv.Validate(token)
		if err != nil {
			s.log.Debug("ws handshake rejected", zap.Error(err))
			_ = conn.Close()
			return
		}

		username := userID
		if s.profiles != nil {
			if p, err := s.profiles.Profile(context.Background(), userID); err == nil {
				username = p.Username
			}
		}

		c := newConnection(conn, userID, username, s)
		s.registry.Connect(c)
		if s.online != nil {
			_ = s.online.SetOnline(context.Background(), userID)
		}
		s.log.Info("ws connected", zap.String("user", userID))

		go c.writePump()
		c.readPump()

		s.registry.Disconnect(c)
		if s.online != nil && s.registry.ConnectionCount(userID) == 0 {
			_ = s.online.SetOffline(context.Background(), userID)
		}
		s.log.Info("ws disconnected", zap.String("user", userID))
	}
}

// NotifyRoom pushes an event to every connection joined to the conversation.
func (s *Server) NotifyRoom(conversationID string, event any) error {
	for _, sub := range s.registry.Members(conversationID) {
		if !sub.Send(event) {
			s.log.Warn("event dropped, slow client", zap.String("user", sub.UserID()))
		}
	}
	return nil
}

// NotifyRoomExcept pushes an event to the room, skipping every connection
// belonging to exceptUserID. Used for receipts the origin already knows about.
func (s *Server) NotifyRoomExcept(conversationID, exceptUserID string, event any) error {
	for _, sub := range s.registry.Members(conversationID) {
		if sub.UserID() == exceptUserID {
			continue
		}
		if !sub.Send(event) {
			s.log.Warn("event dropped, slow client", zap.String("user", sub.UserID()))
		}
	}
	return nil
}

// NotifyUser pushes an event to every live connection of one user.
func (s *Server) NotifyUser(userID string, event any) error {
	for _, sub := range s.registry.Connections(userID) {
		if !sub.Send(event) {
			s.log.Warn("event dropped, slow client", zap.String("user", userID))
		}
	}
	return nil
}

// broadcastExcept relays advisory signals to the room, never echoing the
// sender. Drops are silent; typing state carries no guarantee.
func (s *Server) broadcastExcept(conversationID string, except presence.Subscriber, event any) {
	if conversationID == "" {
		return
	}
	for _, sub := range s.registry.Members(conversationID) {
		if sub == except {
			continue
		}
		sub.Send(event)
	}
}

func (s *Server) touchOnline(userID string) {
	if s.online == nil {
		return
	}
	_ = s.online.Touch(context.Background(), userID)
}
