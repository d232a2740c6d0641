package authstate

import "errors"

var (
	// ErrMissingUserID is returned when a session has no user ID.
	ErrMissingUserID = errors.New("session user ID is required")
	// ErrMissingAccessToken is returned when a session has no access token.
	ErrMissingAccessToken = errors.New("session access token is required")
	// ErrLoadSession is returned when the persisted session cannot be read.
	ErrLoadSession = errors.New("failed to load session from store")
	// ErrSaveSession is returned when persisting the session fails. In-memory
	// state is left unchanged so the caller may retry.
	ErrSaveSession = errors.New("failed to save session to store")
	// ErrClearSession is returned when removing the persisted session fails.
	ErrClearSession = errors.New("failed to clear session from store")
)
