package kvstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"sync"
)

// DefaultWatchBufferSize is the per-watcher notification buffer. When a
// watcher's buffer is full further notifications are dropped for that watcher
// so that slow consumers never block writers.
const DefaultWatchBufferSize = 64

// MemoryStore is an in-memory Store implementation. It is the store of choice
// for tests and for single-process deployments where all contexts share one
// process.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]json.RawMessage
	watchers map[int]chan Change
	nextID   int
	closed   bool

	bufferSize int
	logger     *slog.Logger
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithWatchBufferSize sets the per-watcher notification buffer size.
func WithWatchBufferSize(size int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithMemoryStoreLogger sets the logger for dropped-notification reporting.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		values:     make(map[string]json.RawMessage),
		watchers:   make(map[int]chan Change),
		bufferSize: DefaultWatchBufferSize,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the values for the requested keys.
func (s *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
		if v, ok := s.values[key]; ok {
			// Copy so callers cannot alias internal storage.
			result[key] = json.RawMessage(append([]byte(nil), v...))
		}
	}

	return result, nil
}

// Set replaces the given keys and notifies watchers.
func (s *MemoryStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	changes := make([]Change, 0, len(values))
	for key, value := range values {
		if key == "" {
			return ErrEmptyKey
		}
		old := s.values[key]
		stored := json.RawMessage(append([]byte(nil), value...))
		s.values[key] = stored
		changes = append(changes, Change{Key: key, OldValue: old, NewValue: stored})
	}

	s.notifyLocked(changes)
	return nil
}

// Remove deletes the given keys and notifies watchers for keys that existed.
func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var changes []Change
	for _, key := range keys {
		if key == "" {
			return ErrEmptyKey
		}
		if old, ok := s.values[key]; ok {
			delete(s.values, key)
			changes = append(changes, Change{Key: key, OldValue: old})
		}
	}

	s.notifyLocked(changes)
	return nil
}

// Clear deletes every key and notifies watchers per removed key.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	changes := make([]Change, 0, len(s.values))
	for key, old := range s.values {
		changes = append(changes, Change{Key: key, OldValue: old})
	}
	maps.DeleteFunc(s.values, func(string, json.RawMessage) bool { return true })

	s.notifyLocked(changes)
	return nil
}

// Watch registers a change watcher bound to ctx. The returned channel is
// closed when ctx is cancelled or the store is closed.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}

	id := s.nextID
	s.nextID++
	ch := make(chan Change, s.bufferSize)
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}()

	return ch, nil
}

// Close shuts down the store. Subsequent operations return ErrStoreClosed.
// Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}

	return nil
}

// notifyLocked fans changes out to all watchers without blocking. Callers must
// hold s.mu.
func (s *MemoryStore) notifyLocked(changes []Change) {
	for _, change := range changes {
		for id, ch := range s.watchers {
			select {
			case ch <- change:
			default:
				s.logger.Debug("dropped change notification for slow watcher",
					slog.Int("watcher_id", id),
					slog.String("key", change.Key))
			}
		}
	}
}
