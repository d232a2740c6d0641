// Package authstate owns the authenticated session shared across execution
// contexts. The Manager is the single logical writer of the session key in the
// persistent store; every other context observes the session through store
// change notifications or through the explicit auth-changed broadcast.
//
// The session is an opaque whole value: it is always replaced atomically,
// never partially mutated. Because both the store-change path and the explicit
// broadcast path may deliver the same update, reconciliation is last-write-wins
// and every applied update is idempotent. Duplicate delivery of an identical
// session produces no listener notification, which keeps user-visible side
// effects from firing twice.
//
// # Usage
//
//	manager := authstate.NewManager(store,
//		authstate.WithBroadcaster(broadcaster),
//		authstate.WithLogger(logger),
//	)
//	defer manager.Close()
//
//	if err := manager.Initialize(ctx); err != nil {
//		return err
//	}
//
//	manager.AddListener(authstate.EventSignedOut, func(*authstate.Session) {
//		// clear user-visible affordances
//	})
//
//	err := manager.SetAuthState(ctx, session)
//
// Store failures leave in-memory state untouched and are returned to the
// caller so the operation can be retried; they never escape as panics.
package authstate
