package urlnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmark/extsync/pkg/urlnorm"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips fragment", "https://example.com/page#section-2", "https://example.com/page"},
		{"strips default https port", "https://example.com:443/page", "https://example.com/page"},
		{"strips default http port", "http://example.com:80/page", "http://example.com/page"},
		{"keeps explicit port", "https://example.com:8443/page", "https://example.com:8443/page"},
		{"keeps query string", "https://example.com/search?q=go", "https://example.com/search?q=go"},
		{"collapses bare root slash", "https://example.com/", "https://example.com"},
		{"keeps root slash with query", "https://example.com/?a=1", "https://example.com/?a=1"},
		{"trims surrounding whitespace", "  https://example.com/x  ", "https://example.com/x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := urlnorm.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	once, err := urlnorm.Normalize("HTTPS://Example.com:443/a#frag")
	require.NoError(t, err)

	twice, err := urlnorm.Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"empty", "", urlnorm.ErrEmptyURL},
		{"whitespace only", "   ", urlnorm.ErrEmptyURL},
		{"no scheme", "example.com/page", urlnorm.ErrInvalidURL},
		{"unsupported scheme", "ftp://example.com/file", urlnorm.ErrInvalidURL},
		{"browser internal", "chrome://settings", urlnorm.ErrInvalidURL},
		{"missing host", "https:///path", urlnorm.ErrInvalidURL},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := urlnorm.Normalize(tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsRestricted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"chrome internal", "chrome://extensions", true},
		{"about page", "about:blank", true},
		{"extension page", "chrome-extension://abc/popup.html", true},
		{"firefox extension", "moz-extension://abc/options.html", true},
		{"local file", "file:///home/user/doc.pdf", true},
		{"data url", "data:text/plain,hello", true},
		{"empty", "", true},
		{"schemeless", "example.com", true},
		{"regular https", "https://example.com/article", false},
		{"regular http", "http://example.com", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, urlnorm.IsRestricted(tt.in))
		})
	}
}
