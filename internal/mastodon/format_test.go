package mastodon

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"mastodon_syncer/internal/domain"
)

func TestFormatStatus_TitleWithLink(t *testing.T) {
	item := &domain.FeedItem{
		Title: "A short title",
		URL:   "https://example.com/posts/1",
	}

	got := FormatStatus(item, 500)
	assert.Equal(t, "A short title\n\n🔗 https://example.com/posts/1", got)
}

func TestFormatStatus_ContentUsedWhenTitleAbsent(t *testing.T) {
	item := &domain.FeedItem{
		Content: "Body text only",
		URL:     "https://example.com/posts/2",
	}

	got := FormatStatus(item, 500)
	assert.True(t, strings.HasPrefix(got, "Body text only"))
}

func TestFormatStatus_NoURLNoSuffix(t *testing.T) {
	item := &domain.FeedItem{Title: "Standalone"}
	assert.Equal(t, "Standalone", FormatStatus(item, 500))
}

func TestFormatStatus_TruncatesToExactLimit(t *testing.T) {
	item := &domain.FeedItem{
		Title: strings.Repeat("x", 600),
		URL:   "https://example.com/posts/long",
	}

	got := FormatStatus(item, 500)

	assert.Equal(t, 500, utf8.RuneCountInString(got))
	textPart := strings.SplitN(got, "\n\n", 2)[0]
	assert.True(t, strings.HasSuffix(textPart, "..."))
	assert.True(t, strings.HasSuffix(got, item.URL))
}

func TestFormatStatus_CountsRunesNotBytes(t *testing.T) {
	// Multi-byte characters must count once each.
	item := &domain.FeedItem{
		Title: strings.Repeat("é", 600),
		URL:   "https://example.com/posts/unicode",
	}

	got := FormatStatus(item, 500)
	assert.Equal(t, 500, utf8.RuneCountInString(got))
}

func TestFormatStatus_FitsWithoutTruncation(t *testing.T) {
	item := &domain.FeedItem{
		Title: strings.Repeat("y", 100),
		URL:   "https://example.com/p",
	}

	got := FormatStatus(item, 500)
	assert.NotContains(t, got, "...")
	assert.Equal(t, 100+utf8.RuneCountInString("\n\n🔗 https://example.com/p"), utf8.RuneCountInString(got))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abcd", 2))
	assert.Equal(t, "éé", truncateRunes("ééé", 2))
}
