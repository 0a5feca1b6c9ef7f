package charset

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding represents a text encoding
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1250 Encoding = "windows-1250"
	EncodingISO88592    Encoding = "iso-8859-2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding detects the encoding of a byte buffer. Valid UTF-8 is always
// preferred; anything else is assumed Windows-1250, the encoding every
// non-UTF-8 chain portal uses in practice.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) {
		return EncodingUTF8
	}
	if utf8.Valid(data) {
		return EncodingUTF8
	}
	return EncodingWindows1250
}

// Decode converts a byte buffer from the specified encoding to a UTF-8 string.
// Content that is already valid UTF-8 is passed through regardless of the
// declared encoding: several chains announce windows-1250 but serve UTF-8.
func Decode(data []byte, enc Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data), nil
	}

	var cm *charmap.Charmap
	switch enc {
	case EncodingISO88592:
		cm = charmap.ISO8859_2
	default:
		cm = charmap.Windows1250
	}

	decoded, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// ToUTF8Reader wraps a reader with a decoder converting to UTF-8
func ToUTF8Reader(r io.Reader, enc Encoding) (io.Reader, error) {
	var decoder encoding.Encoding

	switch enc {
	case EncodingWindows1250:
		decoder = charmap.Windows1250
	case EncodingISO88592:
		decoder = charmap.ISO8859_2
	default:
		return r, nil
	}

	return transform.NewReader(r, decoder.NewDecoder()), nil
}
