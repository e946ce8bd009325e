package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "greeting", "hello", 0))

	v, err := m.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemoryStoreTTL(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "ephemeral", "soon gone", 10*time.Millisecond))

	v, err := m.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "soon gone", v)

	time.Sleep(30 * time.Millisecond)

	v, err = m.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Empty(t, v, "expired entry should read as missing")

	exists, err := m.Exists(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", "value", 0))
	require.NoError(t, m.Delete(ctx, "key"))

	exists, err := m.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing key is not an error.
	assert.NoError(t, m.Delete(ctx, "key"))
}

func TestMemoryStoreOverwrite(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", "v1", 0))
	require.NoError(t, m.Set(ctx, "key", "v2", 0))

	v, err := m.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
