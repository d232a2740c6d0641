package message

import (
	"context"
	"encoding/json"
)

// HandlerFunc processes one inbound command and returns the response value to
// marshal back to the sender. Implementations never panic past the bus: the
// serving side wraps handlers so failures become uniform error responses.
type HandlerFunc func(ctx context.Context, cmd Command) any

// Bus is the asynchronous message channel between the background process and
// any number of transient UI contexts. All delivery is fire-and-forget;
// request/reply is layered on top with a sender-enforced timeout.
type Bus interface {
	// Send delivers a command to the serving side and waits for its reply,
	// bounded by ctx and the bus's send timeout.
	Send(ctx context.Context, cmd Command) (json.RawMessage, error)

	// Broadcast fans a command out to all currently subscribed contexts.
	// No response is expected and contexts that are not running never see it.
	Broadcast(ctx context.Context, cmd Command) error

	// Subscribe returns a channel of broadcast commands. The channel closes
	// when ctx is done or the bus closes.
	Subscribe(ctx context.Context) (<-chan Command, error)

	// Serve processes inbound Send requests with the handler until ctx is
	// done. Only one serving side is expected per bus.
	Serve(ctx context.Context, handler HandlerFunc) error
}

// handleSafely invokes the handler, converting a panic into a uniform failure
// response so one bad message never takes the serving loop down.
func handleSafely(ctx context.Context, handler HandlerFunc, cmd Command) (resp any) {
	defer func() {
		if r := recover(); r != nil {
			resp = Fail("internal error")
		}
	}()
	return handler(ctx, cmd)
}

// marshalResponse encodes a handler response, degrading to a generic failure
// when the response itself cannot be encoded.
func marshalResponse(resp any) json.RawMessage {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Fail("internal error"))
	}
	return data
}
