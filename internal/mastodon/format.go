package mastodon

import (
	"unicode/utf8"

	"mastodon_syncer/internal/domain"
)

const ellipsis = "..."

// FormatStatus builds the post body: the item title (or its content when
// no title exists) plus a link suffix when the item has a URL. When the
// combined body exceeds maxLength the text portion is truncated with an
// ellipsis so the final status fits exactly. Lengths are counted in runes,
// matching how the platform counts characters.
func FormatStatus(item *domain.FeedItem, maxLength int) string {
	text := item.Title
	if text == "" {
		text = item.Content
	}

	suffix := ""
	if item.URL != "" {
		suffix = "\n\n🔗 " + item.URL
	}

	available := maxLength - utf8.RuneCountInString(suffix)
	if utf8.RuneCountInString(text) > available {
		cut := available - len([]rune(ellipsis))
		if cut < 0 {
			cut = 0
		}
		text = string([]rune(text)[:cut]) + ellipsis
	}

	return text + suffix
}

// truncateRunes caps s at max characters.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
