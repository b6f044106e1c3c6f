package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EventStore persiste o histórico de eventos (Postgres)
type EventStore interface {
	InsertEvent(ctx context.Context, e events.GameEvent, raw []byte) error
}

// LatestCache guarda o último evento de cada jogo (Redis)
type LatestCache interface {
	SetLatest(ctx context.Context, e events.GameEvent) error
}

// Processor consome GameEvent do Kafka, grava a trilha de auditoria e
// atualiza o cache do último evento. Mensagens inválidas vão para a DLQ.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  EventStore
	Cache  LatestCache   // opcional
	DLQ    MessageWriter // opcional

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnDLQ      func()       // métricas
	OnError    func(string) // métricas por fase
}

var errMissingFields = errors.New("event without id, type or game id")

// Run consome até ctx ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.stageError("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma única mensagem
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	ev, err := decode(m.Value)
	if err != nil {
		p.Log.Warn("invalid message", zap.Error(err), zap.Int64("offset", m.Offset))
		p.stageError("decode")
		p.deadLetter(ctx, m, err)
		return
	}

	// cache primeiro; falha não bloqueia a persistência
	if p.Cache != nil {
		if err := p.Cache.SetLatest(ctx, ev); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err), zap.String("game_id", ev.GameID))
			p.stageError("cache")
		} else if p.OnCached != nil {
			p.OnCached()
		}
	}

	if err := p.Store.InsertEvent(ctx, ev, m.Value); err != nil {
		p.Log.Warn("db insert failed", zap.Error(err), zap.String("event_id", ev.EventID))
		p.stageError("db_insert")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	p.Log.Debug("event recorded",
		zap.String("event_id", ev.EventID),
		zap.String("type", ev.Type),
		zap.String("game_id", ev.GameID),
	)
}

func decode(b []byte) (events.GameEvent, error) {
	var ev events.GameEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, err
	}
	if ev.EventID == "" || ev.Type == "" || ev.GameID == "" {
		return ev, errMissingFields
	}
	return ev, nil
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: append(m.Headers, kafka.Header{Key: "error", Value: []byte(cause.Error())}),
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.stageError("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

func (p *Processor) stageError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
