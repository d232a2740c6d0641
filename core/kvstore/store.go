package kvstore

import (
	"context"
	"encoding/json"
)

// Change describes a single key transition observed on the store.
// NewValue is nil when the key was removed.
type Change struct {
	Key      string          `json:"key"`
	OldValue json.RawMessage `json:"old_value,omitempty"`
	NewValue json.RawMessage `json:"new_value,omitempty"`
}

// Store is the durable key-value store shared by all execution contexts.
// Implementations must be safe for concurrent use and must treat every value
// as an opaque whole-value replacement.
type Store interface {
	// Get returns the values for the requested keys. Missing keys are
	// absent from the result map rather than mapped to nil.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set replaces the given keys with the given values and emits a change
	// notification per key to currently running watchers.
	Set(ctx context.Context, values map[string]json.RawMessage) error

	// Remove deletes the given keys. Removing an absent key is not an error.
	Remove(ctx context.Context, keys ...string) error

	// Clear deletes every key owned by the store.
	Clear(ctx context.Context) error

	// Watch returns a channel of change notifications. Delivery is
	// best-effort: slow consumers drop notifications rather than block
	// writers. The channel is closed when ctx is done or the store closes.
	Watch(ctx context.Context) (<-chan Change, error)
}
