package presence

import (
	"sync"

	"go.uber.org/zap"
)

// Subscriber is a live gateway connection the registry can push events to.
// Send must not block; it reports whether the event was accepted.
type Subscriber interface {
	Send(event any) bool
	UserID() string
}

// Registry tracks which connections are subscribed to which conversation room,
// plus each user's personal notification channel. State is process-local and
// rebuilt as clients reconnect; nothing here is persisted.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
	users map[string]map[Subscriber]struct{}
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		rooms: make(map[string]map[Subscriber]struct{}),
		users: make(map[string]map[Subscriber]struct{}),
		log:   log,
	}
}

// Connect registers the connection on its user's personal channel.
func (r *Registry) Connect(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[s.UserID()]; !ok {
		r.users[s.UserID()] = make(map[Subscriber]struct{})
	}
	r.users[s.UserID()][s] = struct{}{}
}

// Join subscribes the connection to a conversation room. Idempotent; a blank
// room id is logged and ignored since join is fire-and-forget for the client.
func (r *Registry) Join(s Subscriber, conversationID string) {
	if conversationID == "" {
		r.log.Warn("join with empty conversation id", zap.String("user", s.UserID()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[conversationID]; !ok {
		r.rooms[conversationID] = make(map[Subscriber]struct{})
	}
	r.rooms[conversationID][s] = struct{}{}
}

func (r *Registry) Leave(s Subscriber, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s, conversationID)
}

func (r *Registry) leaveLocked(s Subscriber, conversationID string) {
	if set, ok := r.rooms[conversationID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.rooms, conversationID)
		}
	}
}

// Disconnect removes the connection from every room and its personal channel.
func (r *Registry) Disconnect(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.rooms {
		r.leaveLocked(s, id)
	}
	if set, ok := r.users[s.UserID()]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.users, s.UserID())
		}
	}
}

// Members returns a snapshot of the room's current connections.
func (r *Registry) Members(conversationID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[conversationID]
	out := make([]Subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Connections returns a snapshot of a user's live connections.
func (r *Registry) Connections(userID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]Subscriber, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// ConnectionCount reports how many live connections a user has.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}
