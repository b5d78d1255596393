package repo

import (
	"HealthBot/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an abandoned signup is kept.
const DefaultSessionTTL = 24 * time.Hour

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context, userID int64) (model.Session, error) {
	v, err := r.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, err
	}

	var s model.Session
	if err := json.Unmarshal([]byte(v), &s); err != nil {
		return model.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, userID int64, s model.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(userID), b, r.ttl).Err()
}

func (r *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	return r.client.Del(ctx, sessionKey(userID)).Err()
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("signup:%d", userID)
}

// MemorySessionStore keeps sessions in process. They are lost on restart.
type MemorySessionStore struct {
	cache *ttlcache.Cache[int64, model.Session]
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cache := ttlcache.New[int64, model.Session](
		ttlcache.WithTTL[int64, model.Session](ttl),
	)
	go cache.Start()
	return &MemorySessionStore{cache: cache}
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (model.Session, error) {
	item := m.cache.Get(userID)
	if item == nil {
		return model.Session{}, model.ErrSessionNotFound
	}
	return item.Value(), nil
}

func (m *MemorySessionStore) Save(_ context.Context, userID int64, s model.Session) error {
	m.cache.Set(userID, s, ttlcache.DefaultTTL)
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.cache.Delete(userID)
	return nil
}

// Close stops the expiry loop.
func (m *MemorySessionStore) Close() {
	m.cache.Stop()
}
