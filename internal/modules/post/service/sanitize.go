package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
)

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize escapes angle brackets, truncates the escaped text to maxLength
// characters and trims surrounding whitespace. Other characters are left as is.
func Sanitize(text string, maxLength int) string {
	if text == "" || maxLength <= 0 {
		return ""
	}
	return strings.TrimSpace(truncate(markupEscaper.Replace(text), maxLength))
}

// Title derives a post title from the first line of sanitized content.
func Title(content string, ts time.Time) string {
	first, _, _ := strings.Cut(content, "\n")
	first = strings.TrimSpace(truncate(strings.TrimSpace(first), domain.MaxTitleLength))
	if first != "" {
		return first
	}
	if ts.IsZero() {
		return domain.UntitledPost
	}
	return "Post from " + ts.UTC().Format("January 2, 2006")
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
