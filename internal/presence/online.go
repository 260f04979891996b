package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OnlineStore keeps per-user online flags in redis with a TTL, so the profile
// "isOnline" field survives this process while still expiring if we crash
// without cleaning up.
type OnlineStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewOnlineStore(client *redis.Client, prefix string, ttl time.Duration) *OnlineStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &OnlineStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *OnlineStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *OnlineStore) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, s.key(userID), time.Now().Unix(), s.ttl).Err()
}

// Touch refreshes the TTL; called from the connection ping loop.
func (s *OnlineStore) Touch(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, s.key(userID), s.ttl).Err()
}

func (s *OnlineStore) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *OnlineStore) IsOnline(ctx context.Context, userID string) bool {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	return err == nil && n > 0
}
