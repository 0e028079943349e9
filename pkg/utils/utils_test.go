package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Path",
			want: "https://example.com/Path",
		},
		{
			name: "strips utm and click ids",
			in:   "https://example.com/a?utm_source=x&utm_medium=y&fbclid=123&id=9",
			want: "https://example.com/a?id=9",
		},
		{
			name: "drops default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "drops default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "keeps explicit non-default port",
			in:   "https://example.com:8443/a",
			want: "https://example.com:8443/a",
		},
		{
			name: "removes fragment",
			in:   "https://example.com/a#section-2",
			want: "https://example.com/a",
		},
		{
			name: "trims trailing slash",
			in:   "https://example.com/news/",
			want: "https://example.com/news",
		},
		{
			name: "keeps root path",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "sorts query params",
			in:   "https://example.com/a?b=2&a=1",
			want: "https://example.com/a?a=1&b=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	_, err := NormalizeURL("not a url at all://")
	assert.Error(t, err)

	_, err = NormalizeURL("/relative/path")
	assert.Error(t, err)
}

func TestNormalizeURL_CollapsesSyndicatedVariants(t *testing.T) {
	a, err := NormalizeURL("https://News.Example.com/launch?utm_campaign=rss")
	require.NoError(t, err)
	b, err := NormalizeURL("https://news.example.com/launch/")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("title", "body"), ContentHash("title", "body"))
	assert.NotEqual(t, ContentHash("title", "body"), ContentHash("titleb", "ody"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
	assert.Len(t, ContentHash("a"), 64)
}

func TestSafeText(t *testing.T) {
	assert.Equal(t, "one two three", SafeText("  one\n\ttwo\r\n  three  "))
	assert.Equal(t, "", SafeText("  \n\t "))
}

func TestCleanToValidUTF8(t *testing.T) {
	assert.Equal(t, "ab", CleanToValidUTF8("a\x00b"))
	assert.Equal(t, "ok", CleanToValidUTF8("ok\xff"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abc…", TruncateText("abcdef", 3))
	assert.Equal(t, "", TruncateText("abc", 0))
}

func TestCapitalizeSentence(t *testing.T) {
	assert.Equal(t, "Hello world", CapitalizeSentence("hello world"))
	assert.Equal(t, "", CapitalizeSentence(""))
}

func TestContainsString(t *testing.T) {
	assert.True(t, ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, ContainsString([]string{"a", "b"}, "c"))
	assert.False(t, ContainsString(nil, "a"))
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 2.0, AgeDays(now.Add(-48*time.Hour), now), 0.001)
	assert.Zero(t, AgeDays(now.Add(time.Hour), now))
}
