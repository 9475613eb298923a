package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "strategy:greenhouse", []byte(`{"id":"greenhouse"}`)))

	value, ok, err := m.Get(ctx, "strategy:greenhouse")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":"greenhouse"}`, string(value))
}

func TestMemory_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "key", []byte("old")))
	require.NoError(t, m.Set(ctx, "key", []byte("new")))

	value, ok, _ := m.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, "new", string(value))
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "key", []byte("value")))

	value, _, _ := m.Get(ctx, "key")
	value[0] = 'X'

	again, _, _ := m.Get(ctx, "key")
	assert.Equal(t, "value", string(again))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "shared", []byte("value"))
			_, _, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	value, ok, err := m.Get(ctx, "shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", string(value))
}
