package message

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultRequestBufferSize bounds queued requests toward the serving side.
	DefaultRequestBufferSize = 100
	// DefaultBroadcastBufferSize is the per-subscriber broadcast buffer.
	DefaultBroadcastBufferSize = 64
	// DefaultSendTimeout bounds how long a sender waits for a reply.
	DefaultSendTimeout = 5 * time.Second
)

type request struct {
	cmd   Command
	reply chan json.RawMessage
}

// MemoryBus is an in-process Bus built on buffered channels. Broadcast
// delivery is non-blocking: a slow subscriber drops messages rather than
// stalling the publisher, mirroring the transport's no-guarantee contract.
type MemoryBus struct {
	requests chan request

	mu          sync.RWMutex
	subscribers map[int]chan Command
	nextID      int
	closed      bool

	broadcastBuffer int
	sendTimeout     time.Duration
	logger          *slog.Logger
}

// MemoryBusOption configures a MemoryBus.
type MemoryBusOption func(*MemoryBus)

// WithRequestBufferSize sets the request queue capacity. Takes effect only at
// construction time.
func WithRequestBufferSize(size int) MemoryBusOption {
	return func(b *MemoryBus) {
		if size > 0 {
			b.requests = make(chan request, size)
		}
	}
}

// WithBroadcastBufferSize sets the per-subscriber broadcast buffer.
func WithBroadcastBufferSize(size int) MemoryBusOption {
	return func(b *MemoryBus) {
		if size > 0 {
			b.broadcastBuffer = size
		}
	}
}

// WithSendTimeout sets the sender-enforced reply timeout.
func WithSendTimeout(timeout time.Duration) MemoryBusOption {
	return func(b *MemoryBus) {
		if timeout > 0 {
			b.sendTimeout = timeout
		}
	}
}

// WithMemoryBusLogger sets the logger.
func WithMemoryBusLogger(logger *slog.Logger) MemoryBusOption {
	return func(b *MemoryBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewMemoryBus creates an in-process message bus.
func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		requests:        make(chan request, DefaultRequestBufferSize),
		subscribers:     make(map[int]chan Command),
		broadcastBuffer: DefaultBroadcastBufferSize,
		sendTimeout:     DefaultSendTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Send queues the command for the serving side and waits for the reply. When
// no serving side is alive the call fails with ErrRequestTimeout, which is
// the honest answer on a transport with no delivery guarantee.
func (b *MemoryBus) Send(ctx context.Context, cmd Command) (json.RawMessage, error) {
	req := request{cmd: cmd, reply: make(chan json.RawMessage, 1)}

	// The closed check and the push share the read lock so Close cannot
	// close the channel between them.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBusClosed
	}
	select {
	case b.requests <- req:
		b.mu.RUnlock()
	default:
		b.mu.RUnlock()
		return nil, ErrBufferFull
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	}
}

// Serve processes queued requests with the handler until ctx is done.
func (b *MemoryBus) Serve(ctx context.Context, handler HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-b.requests:
			if !ok {
				return nil
			}
			resp := handleSafely(ctx, handler, req.cmd)
			req.reply <- marshalResponse(resp) // buffered, never blocks
		}
	}
}

// Broadcast fans the command out to all current subscribers without blocking.
func (b *MemoryBus) Broadcast(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- cmd:
		default:
			b.logger.Debug("dropped broadcast for slow subscriber",
				slog.Int("subscriber_id", id),
				slog.String("command_type", string(cmd.Type)))
		}
	}
	return nil
}

// Subscribe registers a broadcast listener bound to ctx.
func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Command, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Command, b.broadcastBuffer)
	b.subscribers[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}()

	return ch, nil
}

// Close shuts the bus down. Idempotent.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	close(b.requests)
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return nil
}
