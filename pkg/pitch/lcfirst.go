package pitch

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// LcFirst stringifies v and lower-cases its first character
func LcFirst(v any) string {
	s := fmt.Sprint(v)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
