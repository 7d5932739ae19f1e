package loader

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts b to UTF-8, trying UTF-8, GB18030 and Latin-1 in that
// order. Latin-1 maps every byte, so decoding never fails.
func decodeText(b []byte) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}

	if s, err := simplifiedchinese.GB18030.NewDecoder().Bytes(b); err == nil && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}

	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s)
}

// trimPartialRune drops a UTF-8 sequence cut off at the end of b
func trimPartialRune(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	for i := 1; i <= utf8.UTFMax-1 && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return b[:len(b)-i]
		}
	}
	return b
}
