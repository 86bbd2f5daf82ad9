package stringutil

import (
	"bytes"
	"unicode"
)

// PascalToSnake converts a Go-style identifier into the snake_case name used
// for database columns and configuration keys. Runs of capitals are treated
// as a single word, so ExternalID becomes external_id.
func PascalToSnake(s string) string {
	var b bytes.Buffer

	for i, c := range s {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(rune(s[i-1])) || (i+1 < len(s) && unicode.IsLower(rune(s[i+1])))) {
				b.WriteByte('_')
			}

			b.WriteRune(unicode.ToLower(c))
		} else {
			b.WriteRune(c)
		}
	}

	return b.String()
}
