// Package controller implements the long-running background orchestrator. It
// wires the auth manager, the URL status cache and the message bus together,
// processes inbound commands from transient UI contexts, and drives the
// visible badge for the active page.
//
// The controller models the active page as a small state machine (unknown,
// not-saved, saved, restricted) whose badge is a pure function of the state
// and the authentication flag. A transition re-renders the badge exactly
// once; repeating an identical transition does not re-render. Render failures
// are logged at debug level, leave computed state untouched, and are retried
// naturally on the next transition.
//
// Every wake of the background process may be a cold start. Rehydrate reloads
// the session, which is correctness-critical, and accepts the cache starting
// empty, which is a pure optimization. The remote database is never queried
// here: authoritative saved/not-saved checks happen in a transient UI context
// and come back as URL_STATUS_RESULT commands, so this restart-prone process
// carries no duplicate connection or auth machinery.
package controller
