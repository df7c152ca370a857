/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: text.go
Description: Text decoding with replacement semantics for encoded bytes
fields. Invalid sequences decode to U+FFFD and never fail the record.
*/

package parser

import (
	"strings"
	"unicode/utf8"
)

// DecodeText decodes raw bytes with the given encoding, replacing invalid
// sequences with U+FFFD. Supported encodings: ascii, utf-8 (default),
// latin-1. Unknown encodings fall back to utf-8.
func DecodeText(data []byte, encoding string) string {
	switch strings.ToLower(encoding) {
	case "ascii":
		var b strings.Builder
		for _, c := range data {
			if c < 0x80 {
				b.WriteByte(c)
			} else {
				b.WriteRune(utf8.RuneError)
			}
		}
		return b.String()

	case "latin-1", "latin1", "iso-8859-1":
		var b strings.Builder
		for _, c := range data {
			b.WriteRune(rune(c))
		}
		return b.String()

	default: // utf-8
		var b strings.Builder
		for i := 0; i < len(data); {
			r, size := utf8.DecodeRune(data[i:])
			if r == utf8.RuneError && size == 1 {
				b.WriteRune(utf8.RuneError)
			} else {
				b.WriteRune(r)
			}
			i += size
		}
		return b.String()
	}
}
