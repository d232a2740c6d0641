// Package message defines the typed commands exchanged between execution
// contexts and the asynchronous channel that carries them.
//
// A Command is a transient, never-persisted message: a string type tag plus a
// JSON payload. Payloads form a tagged union decoded by DecodePayload into
// concrete structs, so handlers switch over types instead of poking at
// string-keyed maps. Every command must be idempotent under duplicate and
// out-of-order delivery; the transport gives no ordering or delivery
// guarantee.
//
// The Bus supports two interaction styles:
//
//   - Send: point-to-point request/reply toward the background process. The
//     transport itself is fire-and-forget, so the sender enforces its own
//     reply timeout.
//   - Broadcast: fan-out to every currently subscribed context with no
//     response and no delivery guarantee to contexts that are not running.
//
// MemoryBus wires contexts living in one process. RedisBus carries the same
// contract across processes over Redis pub/sub, whose delivery semantics
// (subscribers only, fire-and-forget) match the channel's contract exactly.
package message
