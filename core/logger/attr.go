// Package logger provides slog attribute helpers shared across the module.
package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety.
// This allows calls like log.Info("msg", logger.Error(err)) without explicit
// nil checks, following the principle of making zero values useful.

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors, enabling safe usage without nil checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event creates an attribute for event names.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Key creates an attribute for store keys.
func Key(key string) slog.Attr {
	if key == "" {
		return slog.Attr{}
	}
	return slog.String("key", key)
}

// URL creates an attribute for page URLs.
func URL(url string) slog.Attr {
	if url == "" {
		return slog.Attr{}
	}
	return slog.String("url", url)
}

// CommandType creates an attribute for inbound command types.
func CommandType(t string) slog.Attr {
	if t == "" {
		return slog.Attr{}
	}
	return slog.String("command_type", t)
}

// UserID creates an attribute for user identifiers.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
