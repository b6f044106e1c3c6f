package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// GameUpdate é o envelope enviado no canal e repassado aos clientes WebSocket
type GameUpdate struct {
	GameID  string           `json:"gameId"`
	Payload events.GameEvent `json:"payload"`
}

// RedisBroadcaster publica cada GameEvent no canal de atualizações ao vivo
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) PublishGameEvent(ctx context.Context, e events.GameEvent) error {
	payload, err := json.Marshal(GameUpdate{GameID: e.GameID, Payload: e})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
