package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func turnLockKey(sessionID string) string {
	return fmt.Sprintf("turnlock:%s", sessionID)
}

// AcquireTurnLock claims the single in-flight turn slot for a session.
// Returns false when another turn is still running. The TTL bounds how
// long a crashed turn can block the session.
func (s *Store) AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, turnLockKey(sessionID), 1, ttl).Result()
}

func (s *Store) ReleaseTurnLock(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, turnLockKey(sessionID)).Err()
}

func analysisKey(userID uint64) string {
	return fmt.Sprintf("analysis:latest:%d", userID)
}

func (s *Store) CacheLatestAnalysis(ctx context.Context, userID uint64, payload []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, analysisKey(userID), payload, ttl).Err()
}

// LatestAnalysis returns redis.Nil when nothing is cached.
func (s *Store) LatestAnalysis(ctx context.Context, userID uint64) ([]byte, error) {
	return s.rdb.Get(ctx, analysisKey(userID)).Bytes()
}

func (s *Store) InvalidateLatestAnalysis(ctx context.Context, userID uint64) error {
	return s.rdb.Del(ctx, analysisKey(userID)).Err()
}
