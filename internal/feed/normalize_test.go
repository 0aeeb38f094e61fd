package feed_test

import (
	"testing"

	"feedhive/internal/domain"
	"feedhive/internal/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSourceURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "already canonical",
			raw:      "https://example.com/feed.xml",
			expected: "https://example.com/feed.xml",
		},
		{
			name:     "uppercase scheme and host",
			raw:      "HTTPS://Example.COM/feed",
			expected: "https://example.com/feed",
		},
		{
			name:     "trailing slash",
			raw:      "https://example.com/feed/",
			expected: "https://example.com/feed",
		},
		{
			name:     "default https port",
			raw:      "https://example.com:443/feed",
			expected: "https://example.com/feed",
		},
		{
			name:     "default http port",
			raw:      "http://example.com:80/feed",
			expected: "http://example.com/feed",
		},
		{
			name:     "fragment dropped",
			raw:      "https://example.com/feed#latest",
			expected: "https://example.com/feed",
		},
		{
			name:     "query preserved",
			raw:      "https://example.com/feed?format=rss",
			expected: "https://example.com/feed?format=rss",
		},
		{
			name:     "surrounding whitespace",
			raw:      "  https://example.com/feed  ",
			expected: "https://example.com/feed",
		},
		{
			name:     "non-default port preserved",
			raw:      "https://example.com:8443/feed",
			expected: "https://example.com:8443/feed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := feed.NormalizeSourceURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeSourceURLRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace only", raw: "   "},
		{name: "no scheme", raw: "example.com/feed"},
		{name: "unsupported scheme", raw: "ftp://example.com/feed"},
		{name: "missing host", raw: "https:///feed"},
		{name: "garbage", raw: "ht tp://bro ken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feed.NormalizeSourceURL(tt.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidSource)
		})
	}
}
