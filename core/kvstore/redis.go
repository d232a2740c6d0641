package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces store keys inside a shared Redis database.
	DefaultKeyPrefix = "extsync:"
	// DefaultScanBatchSize is the SCAN page size used by Clear.
	DefaultScanBatchSize = 1000

	changeChannelSuffix = "changes"
)

// RedisStore is a Store backed by Redis. Change notifications ride a Redis
// pub/sub channel, so only currently subscribed contexts observe them; a
// context started later reads the current value with Get. That is exactly the
// delivery contract the Store interface promises.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	channel   string
	batchSize int
	logger    *slog.Logger
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the Redis key namespace. The change channel name is
// derived from the prefix so stores with different prefixes do not observe
// each other's notifications.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithScanBatchSize sets the SCAN page size used by Clear.
func WithScanBatchSize(size int) RedisStoreOption {
	return func(s *RedisStore) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithRedisStoreLogger sets the logger for notification failures.
func WithRedisStoreLogger(logger *slog.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisStore creates a Store on top of an established Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		prefix:    DefaultKeyPrefix,
		batchSize: DefaultScanBatchSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.channel = s.prefix + changeChannelSuffix
	return s
}

// Get returns the values for the requested keys.
func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
		prefixed[i] = s.prefix + key
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]json.RawMessage, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // nil for missing keys
		}
		result[keys[i]] = json.RawMessage(str)
	}

	return result, nil
}

// Set replaces the given keys atomically via a transactional pipeline and
// publishes one change notification per key.
func (s *RedisStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "" {
			return ErrEmptyKey
		}
		keys = append(keys, key)
	}

	old, err := s.Get(ctx, keys...)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Set(ctx, s.prefix+key, []byte(values[key]), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	for _, key := range keys {
		s.publishChange(ctx, Change{Key: key, OldValue: old[key], NewValue: values[key]})
	}
	return nil
}

// Remove deletes the given keys and publishes a removal notification per key
// that existed.
func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		if key == "" {
			return ErrEmptyKey
		}
		prefixed[i] = s.prefix + key
	}

	old, err := s.Get(ctx, keys...)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return err
	}

	for _, key := range keys {
		if oldValue, existed := old[key]; existed {
			s.publishChange(ctx, Change{Key: key, OldValue: oldValue})
		}
	}
	return nil
}

// Clear deletes every key under the store's prefix in SCAN batches.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", int64(s.batchSize)).Iterator()

	batch := make([]string, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		for _, prefixedKey := range batch {
			s.publishChange(ctx, Change{Key: prefixedKey[len(s.prefix):]})
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

// Watch subscribes to the store's change channel. The returned channel is
// closed when ctx is cancelled.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)

	// Confirm the subscription so callers never miss writes made after
	// Watch returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan Change, DefaultWatchBufferSize)
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
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.logger.Debug("discarding malformed change notification",
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// publishChange emits a best-effort change notification. Publish failures are
// logged and swallowed: a missed notification is recovered by the next Get.
func (s *RedisStore) publishChange(ctx context.Context, change Change) {
	data, err := json.Marshal(change)
	if err != nil {
		s.logger.Debug("failed to marshal change notification",
			slog.String("key", change.Key),
			slog.String("error", err.Error()))
		return
	}

	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("failed to publish change notification",
			slog.String("key", change.Key),
			slog.String("error", err.Error()))
	}
}
