package message

import (
	"context"

	"github.com/readmark/extsync/core/authstate"
)

// AuthBroadcaster adapts a Bus into the authstate.Broadcaster contract,
// turning session transitions into AUTH_STATE_CHANGED broadcasts.
type AuthBroadcaster struct {
	bus Bus
}

// NewAuthBroadcaster wires auth transition broadcasts onto the given bus.
func NewAuthBroadcaster(bus Bus) *AuthBroadcaster {
	return &AuthBroadcaster{bus: bus}
}

// AuthStateChanged broadcasts the new session state. Session is nil on
// sign-out. Broadcast-only: no response is expected and delivery toward
// contexts that are not running is not guaranteed.
func (b *AuthBroadcaster) AuthStateChanged(ctx context.Context, session *authstate.Session) error {
	cmd, err := NewCommand(TypeAuthStateChanged, AuthStateChanged{Session: session})
	if err != nil {
		return err
	}
	return b.bus.Broadcast(ctx, cmd)
}
