package cf

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// textEncoding maps a CFStringEncoding to its x/text codec. UTF-8 and ASCII
// are validated directly and have no codec.
func textEncoding(enc uint32) (encoding.Encoding, bool) {
	switch enc {
	case EncodingMacRoman:
		return charmap.Macintosh, true
	case EncodingUTF16:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), true
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), true
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), true
	}
	return nil, false
}

// decodeBytes interprets b in the given encoding. It fails on malformed input
// and on unknown encodings.
func decodeBytes(b []byte, enc uint32) (string, bool) {
	switch enc {
	case EncodingUTF8:
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	case EncodingASCII:
		for _, c := range b {
			if c > 0x7f {
				return "", false
			}
		}
		return string(b), true
	}

	e, ok := textEncoding(enc)
	if !ok {
		return "", false
	}
	if enc != EncodingMacRoman && len(b)%2 != 0 {
		return "", false
	}
	s, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// encodeString converts s to the given encoding. Characters the encoding
// cannot represent are replaced by lossByte, or fail the conversion when
// lossByte is zero.
func encodeString(s string, enc uint32, lossByte byte) ([]byte, bool) {
	switch enc {
	case EncodingUTF8:
		return []byte(s), true
	case EncodingASCII:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0x7f {
				if lossByte == 0 {
					return nil, false
				}
				out = append(out, lossByte)
				continue
			}
			out = append(out, byte(r))
		}
		return out, true
	}

	e, ok := textEncoding(enc)
	if !ok {
		return nil, false
	}
	out, err := e.NewEncoder().Bytes([]byte(s))
	if err == nil {
		return out, true
	}
	if lossByte == 0 {
		return nil, false
	}

	// Retry rune by rune, substituting what does not convert.
	enc1 := e.NewEncoder()
	out = out[:0]
	var buf [utf8.UTFMax]byte
	for _, r := range s {
		n := utf8.EncodeRune(buf[:], r)
		b, err := enc1.Bytes(buf[:n])
		if err != nil {
			out = append(out, lossByte)
			continue
		}
		out = append(out, b...)
	}
	return out, true
}

// utf16Len counts UTF-16 code units, which is what CFStringGetLength reports.
func utf16Len(s string) int64 {
	var n int64
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
