package fileproc

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText implements spec §4.3's "Text" branch decode chain: utf-8,
// falling back to cp1256 (the common legacy Arabic Windows encoding), and
// finally latin-1 (which never fails to decode, since every byte maps to a
// code point).
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if text, err := charmap.Windows1256.NewDecoder().Bytes(data); err == nil {
		return string(text)
	}
	text, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(text)
}
