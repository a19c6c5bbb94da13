package images

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips all markup from rich text for plain-text display, dropping
// image tags and placeholders along the way. Line-breaking tags become spaces.
func PlainText(text string) string {
	text = breakRE.ReplaceAllString(text, " ")
	text = StripPlaceholders(text)
	sanitized := strictPolicy.Sanitize(text)
	sanitized = html.UnescapeString(sanitized)
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(sanitized, " "))
}

// Preview returns at most limit runes of the plain text of s, with an ellipsis when cut.
func Preview(s string, limit int) string {
	plain := PlainText(s)
	runes := []rune(plain)
	if limit <= 0 || len(runes) <= limit {
		return plain
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
