package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/yeremiapane/campus-food/services"
)

// Envelope is the record published for every notification event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	UserID     uint            `json:"user_id"`
	OrderID    uint            `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Sink publishes events keyed by order id so one order's events stay ordered in a partition.
type Sink struct {
	producer *Producer
}

func NewSink(p *Producer) *Sink {
	return &Sink{producer: p}
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Deliver(ctx context.Context, userID uint, ev services.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		Type:       string(ev.Type()),
		UserID:     userID,
		OrderID:    ev.OrderRef(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	key := []byte(strconv.FormatUint(uint64(ev.OrderRef()), 10))
	return s.producer.Publish(ctx, key, value, kafka.Header{Key: "event_type", Value: []byte(env.Type)})
}
