package producer

import (
	"context"
	"errors"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/kafka"
	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

// KafkaPublisher publica GameEvent com o id do jogo como chave (ordem por jogo na partição)
type KafkaPublisher struct {
	Writer kafka.MessageWriter
}

func NewKafkaPublisher(w kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishGameEvent(ctx context.Context, e events.GameEvent) error {
	return kafka.WriteJSON(ctx, p.Writer, e.GameID, e)
}

// Fanout repassa o evento para vários publishers; falha de um não impede os demais
type Fanout []escrow.Publisher

func (f Fanout) PublishGameEvent(ctx context.Context, e events.GameEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishGameEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
