package message_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmark/extsync/core/message"
)

func TestMemoryBus_SendServe(t *testing.T) {
	t.Parallel()

	t.Run("request reply round trip", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = bus.Serve(ctx, func(_ context.Context, cmd message.Command) any {
				assert.Equal(t, message.TypeGetAuthState, cmd.Type)
				return message.OK()
			})
		}()

		resp, err := bus.Send(ctx, message.Command{Type: message.TypeGetAuthState})
		require.NoError(t, err)

		var result message.Result
		require.NoError(t, json.Unmarshal(resp, &result))
		assert.True(t, result.Success)
	})

	t.Run("times out when nothing serves", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus(message.WithSendTimeout(50 * time.Millisecond))
		defer bus.Close()

		_, err := bus.Send(context.Background(), message.Command{Type: message.TypeGetAuthState})
		assert.ErrorIs(t, err, message.ErrRequestTimeout)
	})

	t.Run("panicking handler yields uniform failure", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = bus.Serve(ctx, func(context.Context, message.Command) any {
				panic("handler exploded")
			})
		}()

		resp, err := bus.Send(ctx, message.Command{Type: message.TypeGetAuthState})
		require.NoError(t, err)

		var result message.Result
		require.NoError(t, json.Unmarshal(resp, &result))
		assert.False(t, result.Success)
		assert.Equal(t, "internal error", result.Error)
	})

	t.Run("send on closed bus", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		require.NoError(t, bus.Close())
		require.NoError(t, bus.Close(), "close is idempotent")

		_, err := bus.Send(context.Background(), message.Command{Type: message.TypeGetAuthState})
		assert.ErrorIs(t, err, message.ErrBusClosed)
	})
}

func TestMemoryBus_Broadcast(t *testing.T) {
	t.Parallel()

	t.Run("delivers to all subscribers", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub1, err := bus.Subscribe(ctx)
		require.NoError(t, err)
		sub2, err := bus.Subscribe(ctx)
		require.NoError(t, err)

		cmd := message.MustCommand(message.TypeAuthStateChanged, message.AuthStateChanged{})
		require.NoError(t, bus.Broadcast(ctx, cmd))

		for _, sub := range []<-chan message.Command{sub1, sub2} {
			select {
			case got := <-sub:
				assert.Equal(t, message.TypeAuthStateChanged, got.Type)
			case <-time.After(time.Second):
				t.Fatal("broadcast not delivered")
			}
		}
	})

	t.Run("no subscribers is fine", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		defer bus.Close()

		err := bus.Broadcast(context.Background(), message.Command{Type: message.TypeAuthStateChanged})
		assert.NoError(t, err)
	})

	t.Run("slow subscriber drops instead of blocking", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus(message.WithBroadcastBufferSize(1))
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := bus.Subscribe(ctx)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10; i++ {
				_ = bus.Broadcast(ctx, message.Command{Type: message.TypeAuthStateChanged})
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("broadcast blocked on slow subscriber")
		}
	})

	t.Run("subscriber channel closes on cancellation", func(t *testing.T) {
		t.Parallel()

		bus := message.NewMemoryBus()
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub, err := bus.Subscribe(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-sub:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("subscriber channel not closed")
		}
	})
}
