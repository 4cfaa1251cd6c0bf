package table

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrDecode is returned when input bytes are not valid in the configured
// character encoding.
var ErrDecode = errors.New("encoding error")

// ErrUnsupportedEncoding is returned for an encoding label that cannot be
// resolved.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// DefaultEncoding is the Thai-locale 8-bit encoding the upstream exports use.
const DefaultEncoding = "tis-620"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding decodes raw upload bytes into UTF-8 text.
type Encoding struct {
	Name string
	enc  encoding.Encoding
	utf8 bool
}

// LookupEncoding resolves an encoding label. Besides every WHATWG label
// (tis-620, windows-874, utf-8, latin1, ...) it accepts "utf-8-sig" for
// UTF-8 with an optional signature. Labels are case-insensitive and
// underscores are treated as dashes.
func LookupEncoding(name string) (Encoding, error) {
	label := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if label == "" {
		label = DefaultEncoding
	}

	switch label {
	case "utf-8-sig", "utf8-sig":
		return Encoding{Name: "utf-8-sig", enc: unicode.UTF8BOM, utf8: true}, nil
	case "tis620":
		label = "tis-620"
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return Encoding{}, fmt.Errorf("%w %q: %v", ErrUnsupportedEncoding, name, err)
	}
	canonical, _ := htmlindex.Name(enc)
	return Encoding{
		Name: label,
		enc:  enc,
		utf8: canonical == "utf-8",
	}, nil
}

// String returns the label the encoding was looked up by.
func (e Encoding) String() string { return e.Name }

// Decode converts data to UTF-8 text. A leading UTF-8 signature is dropped
// for UTF-8 encodings. Bytes that have no mapping in the encoding are
// reported as ErrDecode with their offset rather than silently replaced.
func (e Encoding) Decode(data []byte) (string, error) {
	if e.enc == nil {
		return "", fmt.Errorf("%w: encoding not initialised", ErrDecode)
	}

	if e.utf8 {
		body := bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(body) {
			return "", fmt.Errorf("%w: invalid %s byte sequence at offset %d",
				ErrDecode, e.Name, invalidUTF8Offset(body)+len(data)-len(body))
		}
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return string(out), nil
	}

	if cm, ok := e.enc.(*charmap.Charmap); ok {
		for i, b := range data {
			if cm.DecodeByte(b) == utf8.RuneError {
				return "", fmt.Errorf("%w: byte 0x%02X at offset %d is not defined in %s",
					ErrDecode, b, i, e.Name)
			}
		}
	}

	out, err := e.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}

// Encode converts UTF-8 text into the encoding. Used to build fixtures and
// round-trip exports for legacy consumers.
func (e Encoding) Encode(s string) ([]byte, error) {
	if e.enc == nil {
		return nil, fmt.Errorf("%w: encoding not initialised", ErrDecode)
	}
	if e.utf8 {
		return []byte(s), nil
	}
	out, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(b)
}
