package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sofreh/backend-resto/internal/store"
)

// Topics published by the order pipeline.
const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderStatus      = "order.status_changed"
	TopicCouponRedeemed   = "coupon.redeemed"
	TopicSlotReserved     = "slot.reserved"
	TopicCustomerVerified = "customer.verified"
)

// Recorder persists events. *store.EventRepo satisfies it.
type Recorder interface {
	Append(ctx context.Context, topic string, payload []byte) (store.Event, error)
}

// Subscriber receives every event published on a topic it registered for.
type Subscriber func(ctx context.Context, event store.Event)

// Bus persists domain events and fans them out to in-process subscribers.
// Persistence failures are logged but never block the publisher.
type Bus struct {
	Repo Recorder
	Log  zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]Subscriber
}

// NewBus builds a Bus around the given recorder.
func NewBus(repo Recorder, log zerolog.Logger) *Bus {
	return &Bus{Repo: repo, Log: log, subs: make(map[string][]Subscriber)}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Publish records the event and invokes subscribers synchronously in
// registration order. The payload is marshalled to JSON.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.Log.Error().Err(err).Str("topic", topic).Msg("event payload not serializable")
		return
	}
	event, err := b.Repo.Append(ctx, topic, data)
	if err != nil {
		b.Log.Error().Err(err).Str("topic", topic).Msg("event append failed")
		event = store.Event{Topic: topic, Payload: data}
	}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, event)
	}
}
