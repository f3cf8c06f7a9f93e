package jsonfeed

import (
	"regexp"
	"strings"
)

// The contract here is narrow: drop tags from embedded HTML and pull src
// attributes out of img/video tags. A full HTML parser is deliberately not
// used.
var (
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
	imgTagSrc   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["'][^>]*>`)
	videoTagSrc = regexp.MustCompile(`(?i)<video[^>]+src=["']([^"']+)["'][^>]*>`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// stripHTML removes tags, decodes the fixed entity set, collapses
// whitespace runs, and trims the ends.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTag.ReplaceAllString(html, "")
	text = entityReplacer.Replace(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// extractTagSources returns the src attribute of every match of tagSrc in
// document order.
func extractTagSources(html string, tagSrc *regexp.Regexp) []string {
	if html == "" {
		return nil
	}
	matches := tagSrc.FindAllStringSubmatch(html, -1)
	srcs := make([]string, 0, len(matches))
	for _, m := range matches {
		srcs = append(srcs, m[1])
	}
	return srcs
}
