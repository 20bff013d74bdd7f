package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryGetCreatesAndReuses(t *testing.T) {
	registry := NewRegistry(time.Hour)
	a := registry.Get("session-a")
	require.NoError(t, a.AddItem(Item{ID: "pizza", Price: 120000, Qty: 1}))

	again := registry.Get("session-a")
	require.Same(t, a, again)
	require.Equal(t, 1, again.Len())

	b := registry.Get("session-b")
	require.NotSame(t, a, b)
	require.Equal(t, 0, b.Len())
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := NewRegistry(time.Hour)
	registry.Now = func() time.Time { return current }

	registry.Get("stale")
	current = current.Add(30 * time.Minute)
	registry.Get("fresh")

	current = current.Add(45 * time.Minute)
	evicted := registry.Sweep()
	require.Equal(t, 1, evicted)

	_, ok := registry.Peek("stale")
	require.False(t, ok)
	_, ok = registry.Peek("fresh")
	require.True(t, ok)
}

func TestRegistryDrop(t *testing.T) {
	registry := NewRegistry(time.Hour)
	registry.Get("session")
	require.Equal(t, 1, registry.Len())

	registry.Drop("session")
	require.Equal(t, 0, registry.Len())
	_, ok := registry.Peek("session")
	require.False(t, ok)
}
