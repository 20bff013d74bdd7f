package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/events"
	"github.com/sofreh/backend-resto/internal/store"
)

type memRecorder struct {
	appended []store.Event
	fail     bool
}

func (m *memRecorder) Append(_ context.Context, topic string, payload []byte) (store.Event, error) {
	if m.fail {
		return store.Event{}, errors.New("db down")
	}
	e := store.Event{ID: "e-1", Topic: topic, Payload: payload}
	m.appended = append(m.appended, e)
	return e, nil
}

func TestPublishPersistsAndFansOut(t *testing.T) {
	recorder := &memRecorder{}
	bus := events.NewBus(recorder, zerolog.Nop())

	var got []store.Event
	bus.Subscribe(events.TopicOrderPlaced, func(_ context.Context, e store.Event) {
		got = append(got, e)
	})
	bus.Subscribe(events.TopicOrderStatus, func(_ context.Context, e store.Event) {
		t.Fatal("wrong topic delivered")
	})

	bus.Publish(context.Background(), events.TopicOrderPlaced, map[string]string{"orderId": "o-1"})

	require.Len(t, recorder.appended, 1)
	require.Len(t, got, 1)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	require.Equal(t, "o-1", payload["orderId"])
}

func TestPublishSurvivesPersistFailure(t *testing.T) {
	recorder := &memRecorder{fail: true}
	bus := events.NewBus(recorder, zerolog.Nop())

	delivered := 0
	bus.Subscribe(events.TopicCouponRedeemed, func(_ context.Context, e store.Event) {
		delivered++
		require.Equal(t, events.TopicCouponRedeemed, e.Topic)
	})

	bus.Publish(context.Background(), events.TopicCouponRedeemed, map[string]string{"code": "EID"})
	require.Equal(t, 1, delivered)
}

func TestSubscribeMultiple(t *testing.T) {
	bus := events.NewBus(&memRecorder{}, zerolog.Nop())

	order := []string{}
	bus.Subscribe(events.TopicSlotReserved, func(context.Context, store.Event) { order = append(order, "first") })
	bus.Subscribe(events.TopicSlotReserved, func(context.Context, store.Event) { order = append(order, "second") })

	bus.Publish(context.Background(), events.TopicSlotReserved, nil)
	require.Equal(t, []string{"first", "second"}, order)
}
