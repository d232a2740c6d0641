package message

import "errors"

var (
	// ErrEmptyMessage is returned when a message is nil or empty.
	ErrEmptyMessage = errors.New("message is required")
	// ErrMissingType is returned when a message has no type field.
	ErrMissingType = errors.New("message type is required")
	// ErrInvalidType is returned when the type field is not a string.
	ErrInvalidType = errors.New("message type must be a string")
	// ErrUnknownType is returned for a well-formed message whose type is not
	// part of the command union. The text is part of the wire contract.
	ErrUnknownType = errors.New("Unknown message type")
	// ErrMalformedPayload is returned when a payload does not decode into the
	// struct its type tag promises.
	ErrMalformedPayload = errors.New("malformed message payload")

	// ErrBusClosed is returned when sending on a closed bus.
	ErrBusClosed = errors.New("message: bus is closed")
	// ErrRequestTimeout is returned when no reply arrives within the sender's
	// timeout. The transport is fire-and-forget, so a missing receiver and a
	// slow receiver are indistinguishable.
	ErrRequestTimeout = errors.New("message: request timed out")
	// ErrBufferFull is returned when the request buffer cannot accept another
	// message without blocking.
	ErrBufferFull = errors.New("message: request buffer is full")
)
