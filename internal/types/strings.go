package types

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// UTF16 returns the UTF-16 code units of s, the representation Java
// strings use.
func UTF16(s string) []uint16 {
	b, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// The encoder replaces invalid UTF-8 rather than failing.
		return nil
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return units
}

// ModifiedUTF8 encodes s the way class files and the runtime store string
// constants: NUL as two bytes and supplementary characters as surrogate
// pairs of three bytes each.
func ModifiedUTF8(s string) []byte {
	units := UTF16(s)
	out := make([]byte, 0, len(units))
	for _, c := range units {
		switch {
		case c != 0 && c < 0x80:
			out = append(out, byte(c))
		case c < 0x800:
			out = append(out, byte(0xc0|c>>6), byte(0x80|c&0x3f))
		default:
			out = append(out, byte(0xe0|c>>12), byte(0x80|(c>>6)&0x3f), byte(0x80|c&0x3f))
		}
	}
	return out
}

// JavaLength returns the length of s as a Java string.
func JavaLength(s string) int { return len(UTF16(s)) }
