package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pari-mutuel-escrow/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

type recorder struct {
	got []events.GameEvent
	err error
}

func (r *recorder) PublishGameEvent(_ context.Context, e events.GameEvent) error {
	r.got = append(r.got, e)
	return r.err
}

func TestKafkaPublisherKeysByGame(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.PublishGameEvent(context.Background(), events.GameEvent{
		EventID: "e1", Type: events.TypeBetsClosed, GameID: "0xabc",
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "0xabc", string(w.msgs[0].Key))

	var back events.GameEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &back))
	assert.Equal(t, events.TypeBetsClosed, back.Type)
	assert.Equal(t, "e1", back.EventID)
}

func TestFanoutDeliversToAll(t *testing.T) {
	a := &recorder{err: errors.New("redis down")}
	b := &recorder{}
	f := Fanout{a, b}

	err := f.PublishGameEvent(context.Background(), events.GameEvent{Type: events.TypeGameCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
