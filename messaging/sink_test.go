package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/services"
)

type memWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestSinkPublishesEnvelope(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, 8)
	p.Start()

	sink := NewSink(p)
	err := sink.Deliver(context.Background(), 20, services.OrderUpdateEvent{
		OrderID: 15, Status: models.OrderStatusDeclined, ConcessionName: "Kape",
	})
	require.NoError(t, err)

	p.Close()
	p.WaitClosed()
	assert.True(t, w.closed)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "15", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "order_update", string(msg.Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "order_update", env.Type)
	assert.Equal(t, uint(20), env.UserID)
	assert.Equal(t, uint(15), env.OrderID)
	assert.NotEmpty(t, env.EventID)
	assert.Contains(t, string(env.Payload), `"status":"declined"`)
}

func TestProducerKeepsRunningAfterWriteErrors(t *testing.T) {
	w := &memWriter{fail: true}
	p := NewProducerWithWriter(w, 1)
	p.Start()

	require.NoError(t, p.Publish(context.Background(), []byte("1"), []byte("a")))
	require.NoError(t, p.Publish(context.Background(), []byte("2"), []byte("b")))
	p.Close()
	p.WaitClosed()
	assert.Empty(t, w.msgs)
	assert.True(t, w.closed)
}

func TestPublishGivesUpWhenContextEnds(t *testing.T) {
	p := NewProducerWithWriter(&memWriter{}, 1)
	// no Start: the inbox fills up and nothing drains it
	require.NoError(t, p.Publish(context.Background(), nil, []byte("first")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, nil, []byte("second"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishAfterCloseIsRefused(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, 4)
	p.Start()

	require.NoError(t, p.Publish(context.Background(), []byte("1"), []byte("a")))
	p.Close()
	p.Close()
	p.WaitClosed()

	// a handler outliving the server shutdown must not panic here
	err := p.Publish(context.Background(), []byte("2"), []byte("b"))
	assert.ErrorIs(t, err, ErrProducerClosed)

	sink := NewSink(p)
	err = sink.Deliver(context.Background(), 20, services.OrderUpdateEvent{OrderID: 16, Status: models.OrderStatusReady})
	assert.ErrorIs(t, err, ErrProducerClosed)
	assert.Len(t, w.msgs, 1)
}
