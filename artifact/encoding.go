package artifact

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is used when a descriptor does not name one.
const DefaultEncoding = "utf-8"

// ResolveEncoding looks up an encoding by its IANA or WHATWG name.
// An empty name resolves to UTF-8.
func ResolveEncoding(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// CanonicalEncoding returns the canonical name of an encoding name, so that
// "UTF8", "utf-8" and "" compare equal. Unknown names are returned
// lower-cased.
func CanonicalEncoding(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return strings.ToLower(name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return strings.ToLower(name)
	}
	return canonical
}

// EncodeString converts text to bytes in the named encoding.
func EncodeString(name, text string) ([]byte, error) {
	enc, err := ResolveEncoding(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", CanonicalEncoding(name), err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// DecodeBytes converts bytes in the named encoding to text.
func DecodeBytes(name string, data []byte) (string, error) {
	enc, err := ResolveEncoding(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", CanonicalEncoding(name), err)
	}
	return string(out), nil
}
