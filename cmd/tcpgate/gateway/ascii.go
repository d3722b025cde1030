package gateway

import (
	"unicode/utf16"
	"unicode/utf8"
)

const hexDigits = "0123456789ABCDEF"

// EscapeASCII appends src to dst with every non-ASCII code point replaced
// by a \uXXXX escape. Code points above U+FFFF become a UTF-16 surrogate
// pair and invalid UTF-8 bytes become \uFFFD, so escaped JSON stays valid.
func EscapeASCII(dst, src []byte) []byte {
	for i := 0; i < len(src); {
		c := src[i]
		if c < utf8.RuneSelf {
			dst = append(dst, c)
			i++
			continue
		}

		r, size := utf8.DecodeRune(src[i:])
		i += size
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			dst = appendEscape(dst, r1)
			dst = appendEscape(dst, r2)
			continue
		}
		dst = appendEscape(dst, r)
	}
	return dst
}

func appendEscape(dst []byte, r rune) []byte {
	return append(dst, '\\', 'u',
		hexDigits[r>>12&0xF], hexDigits[r>>8&0xF], hexDigits[r>>4&0xF], hexDigits[r&0xF])
}
