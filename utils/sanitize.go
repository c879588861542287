package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer     = bluemonday.UGCPolicy()
	textSanitizer = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks. Used for post bodies and comments.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizeText strips every tag. Used for titles, nicknames and report reasons.
func SanitizeText(input string) string {
	return strings.TrimSpace(textSanitizer.Sanitize(input))
}
