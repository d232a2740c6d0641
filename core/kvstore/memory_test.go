package kvstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmark/extsync/core/kvstore"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestMemoryStore_SetGet(t *testing.T) {
	t.Parallel()

	t.Run("round trips a value", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"a": raw(`{"v":1}`)}))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(got["a"]))
	})

	t.Run("missing keys are absent from the result", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()

		got, err := store.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.NotContains(t, got, "missing")
	})

	t.Run("set replaces the whole value", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"a": raw(`{"v":1,"w":2}`)}))
		require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"a": raw(`{"v":3}`)}))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":3}`, string(got["a"]))
	})

	t.Run("rejects empty key", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()

		err := store.Set(context.Background(), map[string]json.RawMessage{"": raw(`1`)})
		assert.ErrorIs(t, err, kvstore.ErrEmptyKey)
	})
}

func TestMemoryStore_Remove(t *testing.T) {
	t.Parallel()

	t.Run("removes existing key", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"a": raw(`1`)}))
		require.NoError(t, store.Remove(ctx, "a"))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("removing absent key is not an error", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()

		assert.NoError(t, store.Remove(context.Background(), "nope"))
	})
}

func TestMemoryStore_Clear(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{
		"a": raw(`1`),
		"b": raw(`2`),
	}))
	require.NoError(t, store.Clear(ctx))

	got, err := store.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_Watch(t *testing.T) {
	t.Parallel()

	t.Run("delivers set and remove notifications", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := store.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"a": raw(`1`)}))

		select {
		case change := <-changes:
			assert.Equal(t, "a", change.Key)
			assert.Nil(t, change.OldValue)
			assert.JSONEq(t, `1`, string(change.NewValue))
		case <-time.After(time.Second):
			t.Fatal("no change notification for set")
		}

		require.NoError(t, store.Remove(ctx, "a"))

		select {
		case change := <-changes:
			assert.Equal(t, "a", change.Key)
			assert.JSONEq(t, `1`, string(change.OldValue))
			assert.Nil(t, change.NewValue)
		case <-time.After(time.Second):
			t.Fatal("no change notification for remove")
		}
	})

	t.Run("channel closes on context cancellation", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore()
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		changes, err := store.Watch(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok, "channel should be closed")
		case <-time.After(time.Second):
			t.Fatal("channel not closed after cancellation")
		}
	})

	t.Run("slow watcher drops rather than blocks writers", func(t *testing.T) {
		t.Parallel()

		store := kvstore.NewMemoryStore(kvstore.WithWatchBufferSize(1))
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := store.Watch(ctx)
		require.NoError(t, err)

		// Nobody reads the watcher channel; writes must still complete.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10; i++ {
				_ = store.Set(ctx, map[string]json.RawMessage{"a": raw(`1`)})
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("writer blocked on slow watcher")
		}
	})
}

func TestMemoryStore_Close(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")

	_, err := store.Get(context.Background(), "a")
	assert.ErrorIs(t, err, kvstore.ErrStoreClosed)

	err = store.Set(context.Background(), map[string]json.RawMessage{"a": raw(`1`)})
	assert.ErrorIs(t, err, kvstore.ErrStoreClosed)
}
