package message

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	requestChannelSuffix   = "requests"
	broadcastChannelSuffix = "broadcast"
	replyChannelPrefix     = "reply:"

	// DefaultRedisChannelPrefix namespaces bus channels in a shared Redis.
	DefaultRedisChannelPrefix = "extsync:bus:"
)

// envelope is the wire frame for request/reply over pub/sub. The reply rides
// a per-request channel named by a fresh UUID.
type envelope struct {
	ID      string  `json:"id"`
	ReplyTo string  `json:"reply_to"`
	Command Command `json:"command"`
}

// RedisBus carries the Bus contract across OS processes over Redis pub/sub.
// Pub/sub delivers only to currently subscribed clients and never queues for
// absent ones, which is precisely the message channel's delivery contract:
// fire-and-forget, no guarantee toward contexts that are not running.
type RedisBus struct {
	client      *redis.Client
	prefix      string
	sendTimeout time.Duration
	logger      *slog.Logger
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithRedisChannelPrefix sets the pub/sub channel namespace.
func WithRedisChannelPrefix(prefix string) RedisBusOption {
	return func(b *RedisBus) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithRedisSendTimeout sets the sender-enforced reply timeout.
func WithRedisSendTimeout(timeout time.Duration) RedisBusOption {
	return func(b *RedisBus) {
		if timeout > 0 {
			b.sendTimeout = timeout
		}
	}
}

// WithRedisBusLogger sets the logger.
func WithRedisBusLogger(logger *slog.Logger) RedisBusOption {
	return func(b *RedisBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewRedisBus creates a Bus on top of an established Redis client.
func NewRedisBus(client *redis.Client, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{
		client:      client,
		prefix:      DefaultRedisChannelPrefix,
		sendTimeout: DefaultSendTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Send publishes the command on the request channel and waits for a reply on
// a per-request channel, bounded by ctx and the send timeout.
func (b *RedisBus) Send(ctx context.Context, cmd Command) (json.RawMessage, error) {
	id := uuid.NewString()
	replyChannel := b.prefix + replyChannelPrefix + id

	// Subscribe before publishing so the reply cannot slip past us.
	pubsub := b.client.Subscribe(ctx, replyChannel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	data, err := json.Marshal(envelope{ID: id, ReplyTo: replyChannel, Command: cmd})
	if err != nil {
		return nil, err
	}
	if err := b.client.Publish(ctx, b.prefix+requestChannelSuffix, data).Err(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	msgs := pubsub.Channel()
	select {
	case msg, ok := <-msgs:
		if !ok {
			return nil, ErrBusClosed
		}
		return json.RawMessage(msg.Payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	}
}

// Serve consumes the request channel and publishes handler responses to each
// request's reply channel until ctx is done. Requests are handled one at a
// time, preserving the background process's single event loop model.
func (b *RedisBus) Serve(ctx context.Context, handler HandlerFunc) error {
	pubsub := b.client.Subscribe(ctx, b.prefix+requestChannelSuffix)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Debug("discarding malformed request envelope",
					slog.String("error", err.Error()))
				continue
			}

			resp := marshalResponse(handleSafely(ctx, handler, env.Command))
			if env.ReplyTo == "" {
				continue // fire-and-forget request
			}
			if err := b.client.Publish(ctx, env.ReplyTo, []byte(resp)).Err(); err != nil {
				b.logger.Debug("failed to publish reply",
					slog.String("request_id", env.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Broadcast publishes the command on the broadcast channel. Fire-and-forget.
func (b *RedisBus) Broadcast(ctx context.Context, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+broadcastChannelSuffix, data).Err()
}

// Subscribe returns a channel of broadcast commands. The channel closes when
// ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Command, error) {
	pubsub := b.client.Subscribe(ctx, b.prefix+broadcastChannelSuffix)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan Command, DefaultBroadcastBufferSize)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				cmd, err := Parse([]byte(msg.Payload))
				if err != nil {
					b.logger.Debug("discarding malformed broadcast",
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
