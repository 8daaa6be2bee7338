// internal/form/normalize.go
package form

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize canonicalizes a label so spreadsheet column names can be matched
// against on-screen question headings despite formatting differences. The
// target UI decorates required-field labels with newlines and asterisk
// markers; those are stripped, the result is trimmed and lowercased, and
// internal whitespace runs collapse to single spaces.
//
// Normalize is pure and total: non-string input is rendered via its default
// string conversion, and the function is idempotent.
func Normalize(v any) string {
	text, ok := v.(string)
	if !ok {
		text = fmt.Sprint(v)
	}
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ToLower(strings.TrimSpace(text))
	return whitespaceRun.ReplaceAllString(text, " ")
}
