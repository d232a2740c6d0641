package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/readmark/extsync/core/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("nil error yields empty attr", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, slog.Attr{}, logger.Error(nil))
	})

	t.Run("non-nil error", func(t *testing.T) {
		t.Parallel()
		attr := logger.Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, "boom", attr.Value.Any().(error).Error())
	})
}

func TestStringAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"component", logger.Component("controller"), "component", "controller"},
		{"event", logger.Event("signed_out"), "event", "signed_out"},
		{"key", logger.Key("auth_session"), "key", "auth_session"},
		{"url", logger.URL("https://example.com"), "url", "https://example.com"},
		{"command type", logger.CommandType("MARK_AS_READ"), "command_type", "MARK_AS_READ"},
		{"user id", logger.UserID("u1"), "user_id", "u1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.Equal(t, tt.wantVal, tt.attr.Value.String())
		})
	}
}

func TestEmptyAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Key(""))
	assert.Equal(t, slog.Attr{}, logger.URL(""))
	assert.Equal(t, slog.Attr{}, logger.CommandType(""))
	assert.Equal(t, slog.Attr{}, logger.UserID(""))
}

func TestDuration(t *testing.T) {
	t.Parallel()

	attr := logger.Duration(3 * time.Second)
	assert.Equal(t, "duration", attr.Key)
	assert.Equal(t, 3*time.Second, attr.Value.Duration())
}
