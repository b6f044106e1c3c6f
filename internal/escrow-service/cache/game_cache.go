package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// GameCache guarda a visão serializada de um jogo no Redis, junto com a versão
// do jogo lida do store. Cada transição publicada grava uma marca (versão sem
// visão) e uma leitura mais antiga que a marca não volta para o cache.
type GameCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewGameCache(c *redis.Client, ttl time.Duration) *GameCache {
	return &GameCache{Client: c, TTL: ttl}
}

// entry é o valor gravado; View vazia é a marca de invalidação
type entry struct {
	Version int64           `json:"version"`
	View    json.RawMessage `json:"view,omitempty"`
}

// replaces decide se next pode substituir cur: versão maior sempre vence e, na
// mesma versão, só uma visão substitui a marca
func replaces(cur, next entry) bool {
	if next.Version != cur.Version {
		return next.Version > cur.Version
	}
	return len(cur.View) == 0 && len(next.View) > 0
}

func key(gameID string) string { return "escrow:game:" + gameID }

// Get preenche dst; false quando não há entrada ou só há a marca
func (c *GameCache) Get(ctx context.Context, gameID string, dst any) (bool, error) {
	b, err := c.Client.Get(ctx, key(gameID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return false, err
	}
	if len(e.View) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(e.View, dst)
}

// Set grava v como a visão do jogo na versão informada
func (c *GameCache) Set(ctx context.Context, gameID string, version int64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.put(ctx, gameID, entry{Version: version, View: b})
}

// PublishGameEvent permite registrar o cache como publisher do serviço
func (c *GameCache) PublishGameEvent(ctx context.Context, e events.GameEvent) error {
	return c.put(ctx, e.GameID, entry{Version: e.Version})
}

const maxPutAttempts = 3

// put grava next se ele substitui o valor atual (WATCH/MULTI). Se outra escrita
// mudar a chave no meio, a comparação é refeita.
func (c *GameCache) put(ctx context.Context, gameID string, next entry) error {
	k := key(gameID)
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	for i := 0; i < maxPutAttempts; i++ {
		err = c.tryPut(ctx, k, raw, next)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (c *GameCache) tryPut(ctx context.Context, k string, raw []byte, next entry) error {
	return c.Client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var cur entry
			if json.Unmarshal(b, &cur) == nil && !replaces(cur, next) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, raw, c.TTL)
			return nil
		})
		return err
	}, k)
}
