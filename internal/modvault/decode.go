package modvault

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Archive entry names predating the ZIP UTF-8 flag are stored in whatever
// codepage the packing tool used. The recovery chain is an ordered list of
// decode strategies tried in sequence; the first success wins and the raw
// name is kept when nothing applies. The chain is plain data, independent of
// the zip library, so it is testable with byte-string fixtures alone.
type decodeStrategy struct {
	name   string
	decode func(raw string) (string, bool)
}

var nameDecodeChain = []decodeStrategy{
	{name: "utf-8", decode: decodeValidUTF8},
	{name: "cp437+gbk", decode: decodeCP437GBK},
}

// decodeEntryName recovers a display name from the stored entry name bytes.
func decodeEntryName(raw string) string {
	for _, s := range nameDecodeChain {
		if out, ok := s.decode(raw); ok {
			debugf("decoded entry name via %s: %q\n", s.name, out)
			return out
		}
	}
	return raw
}

func decodeValidUTF8(raw string) (string, bool) {
	if utf8.ValidString(raw) {
		return raw, true
	}
	return "", false
}

// decodeCP437GBK recovers the entry's original byte sequence through IBM
// codepage 437 and decodes it as GBK. Readers that assume CP437 turn GBK
// names into box-drawing mojibake; the CP437 encoder maps such mojibake back
// to the original bytes. Raw undecoded bytes are used as-is.
func decodeCP437GBK(raw string) (string, bool) {
	restored := raw
	if utf8.ValidString(raw) {
		if b, err := charmap.CodePage437.NewEncoder().String(raw); err == nil {
			restored = b
		}
	}
	out, err := simplifiedchinese.GBK.NewDecoder().String(restored)
	if err != nil || strings.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return out, true
}
