package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// RedisCache guarda o último evento de cada jogo com TTL
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(gameID string) string { return "escrow:latest:" + gameID }

func (r *RedisCache) SetLatest(ctx context.Context, e events.GameEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.GameID), b, r.TTL).Err()
}

// Latest retorna o último evento visto; false se não houver
func (r *RedisCache) Latest(ctx context.Context, gameID string) (events.GameEvent, bool, error) {
	var e events.GameEvent
	b, err := r.Client.Get(ctx, key(gameID)).Bytes()
	if err == redis.Nil {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	return e, true, json.Unmarshal(b, &e)
}
