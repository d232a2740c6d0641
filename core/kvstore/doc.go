// Package kvstore defines the shared persistent key-value store contract that
// couples otherwise isolated execution contexts, plus in-memory and Redis
// backed implementations.
//
// The store is the only durable shared state in the system. All writers
// replace whole values, never mutate fields in place, which keeps concurrent
// writers in different contexts from losing each other's updates. Writes
// trigger best-effort change notifications delivered to currently running
// watchers only; a context that is not alive at write time observes the new
// value on its next Get.
//
// # Usage
//
//	store := kvstore.NewMemoryStore()
//	defer store.Close()
//
//	changes, _ := store.Watch(ctx)
//	go func() {
//		for ch := range changes {
//			log.Printf("key %s changed", ch.Key)
//		}
//	}()
//
//	err := store.Set(ctx, map[string]json.RawMessage{
//		"auth_session": data,
//	})
//
// RedisStore provides the same contract across OS processes using Redis
// pub/sub for change fan-out. Pub/sub delivers only to currently subscribed
// clients, which matches the store's notification contract exactly.
package kvstore
