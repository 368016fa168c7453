package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strictPolicy removes all HTML tags and attributes. Used for fields
	// that must be plain text (usernames, titles, registration reasons).
	strictPolicy = bluemonday.StrictPolicy()

	// ugcPolicy allows safe user-generated content with basic formatting
	// (descriptions, organization bios).
	ugcPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML and surrounding whitespace.
func Text(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

// HTML keeps safe formatting tags and drops scripts, iframes and
// event handlers.
func HTML(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}

// TextSlice sanitizes each string in a slice, removing all HTML.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, len(inputs))
	for i, input := range inputs {
		sanitized[i] = Text(input)
	}
	return sanitized
}
