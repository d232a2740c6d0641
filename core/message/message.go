package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/readmark/extsync/core/authstate"
)

// Type tags a command on the wire.
type Type string

// Command types understood by the background process.
const (
	TypeMarkAsRead       Type = "MARK_AS_READ"
	TypeBookmarkSaved    Type = "BOOKMARK_SAVED"
	TypeBookmarkUpdated  Type = "BOOKMARK_UPDATED"
	TypeGetAuthState     Type = "GET_AUTH_STATE"
	TypeCheckURLStatus   Type = "CHECK_URL_STATUS"
	TypeURLStatusResult  Type = "URL_STATUS_RESULT"
	TypeAuthStateChanged Type = "AUTH_STATE_CHANGED"
	TypeGetSettings      Type = "GET_SETTINGS"
	TypeUpdateSettings   Type = "UPDATE_SETTINGS"
)

// Command is the transient wire shape of a message: a type tag plus an opaque
// payload. Commands are never persisted.
type Command struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarkAsRead asks the background process to save the given page on behalf of
// the signed-in user.
type MarkAsRead struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BookmarkSaved reports that a page was saved in some context; the cached
// judgement for the URL must be replaced immediately.
type BookmarkSaved struct {
	URL string `json:"url"`
}

// BookmarkUpdated reports that an existing bookmark changed.
type BookmarkUpdated struct {
	URL string `json:"url"`
}

// GetAuthState asks for the current authentication state. The response never
// carries token material.
type GetAuthState struct{}

// CheckURLStatus asks the background process to re-derive the badge for the
// active page. The status itself is delivered asynchronously via the badge.
type CheckURLStatus struct{}

// URLStatusResult carries an authoritative saved/not-saved judgement produced
// by a transient UI context, which is the only place the remote database is
// consulted.
type URLStatusResult struct {
	URL   string `json:"url"`
	Saved bool   `json:"saved"`
}

// AuthStateChanged is the broadcast-only notification of a session change.
// Session is nil on sign-out. No response is expected.
type AuthStateChanged struct {
	Session *authstate.Session `json:"session"`
}

// GetSettings asks for the persisted settings value.
type GetSettings struct{}

// UpdateSettings replaces the persisted settings value as a whole.
type UpdateSettings struct {
	StatusCategories []string `json:"status_categories"`
}

// NewCommand builds a Command from a typed payload.
func NewCommand(t Type, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Command{Type: t, Payload: data}, nil
}

// MustCommand is NewCommand for payloads that cannot fail to marshal.
func MustCommand(t Type, payload any) Command {
	cmd, err := NewCommand(t, payload)
	if err != nil {
		panic(err)
	}
	return cmd
}

// Parse validates the wire shape of an inbound message: non-null JSON object
// with a string type field. Payload decoding happens separately in
// DecodePayload so malformed-envelope and malformed-payload errors stay
// distinguishable.
func Parse(data []byte) (Command, error) {
	if len(data) == 0 || string(data) == "null" {
		return Command{}, ErrEmptyMessage
	}

	var probe struct {
		Type    json.RawMessage `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Command{}, errors.Join(ErrEmptyMessage, err)
	}
	if len(probe.Type) == 0 || string(probe.Type) == "null" {
		return Command{}, ErrMissingType
	}

	var typ string
	if err := json.Unmarshal(probe.Type, &typ); err != nil {
		return Command{}, ErrInvalidType
	}
	if typ == "" {
		return Command{}, ErrMissingType
	}

	return Command{Type: Type(typ), Payload: probe.Payload}, nil
}

// DecodePayload decodes a command's payload into the concrete struct its type
// tag names. An unrecognized type yields ErrUnknownType; handlers switch over
// the returned value for exhaustive, runtime-checked dispatch.
func DecodePayload(cmd Command) (any, error) {
	switch cmd.Type {
	case TypeMarkAsRead:
		return decodeAs[MarkAsRead](cmd)
	case TypeBookmarkSaved:
		return decodeAs[BookmarkSaved](cmd)
	case TypeBookmarkUpdated:
		return decodeAs[BookmarkUpdated](cmd)
	case TypeGetAuthState:
		return decodeAs[GetAuthState](cmd)
	case TypeCheckURLStatus:
		return decodeAs[CheckURLStatus](cmd)
	case TypeURLStatusResult:
		return decodeAs[URLStatusResult](cmd)
	case TypeAuthStateChanged:
		return decodeAs[AuthStateChanged](cmd)
	case TypeGetSettings:
		return decodeAs[GetSettings](cmd)
	case TypeUpdateSettings:
		return decodeAs[UpdateSettings](cmd)
	default:
		return nil, ErrUnknownType
	}
}

func decodeAs[T any](cmd Command) (T, error) {
	var payload T
	if len(cmd.Payload) == 0 || string(cmd.Payload) == "null" {
		return payload, nil
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		var zero T
		return zero, errors.Join(ErrMalformedPayload, err)
	}
	return payload, nil
}
