package extractor

import (
	"strings"
	"unicode/utf8"
)

// decodePlainText never fails: every byte that is not part of a valid UTF-8 sequence
// becomes its own U+FFFD.
func decodePlainText(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(data[:size])
		}
		data = data[size:]
	}
	return b.String()
}
