package diskkv

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// encodeString converts s to bytes per spec.md §6's encoding option,
// applied on Put's string branch. "" and "utf8" are the same thing: a
// Go string already is its UTF-8 bytes, so no conversion happens.
// "base64" and "hex" treat s as text in that encoding and decode it to
// the raw bytes it represents.
func encodeString(s string, encoding string) ([]byte, error) {
	switch encoding {
	case "", "utf8":
		return []byte(s), nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode base64 value: %w", err)
		}

		return b, nil
	case "hex":
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode hex value: %w", err)
		}

		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrInvalidInput, encoding)
	}
}

// decodeString converts b back to the string representation named by
// encoding, the inverse of encodeString — applied when a caller reads a
// value back as a string via Store.DecodeString.
func decodeString(b []byte, encoding string) (string, error) {
	switch encoding {
	case "", "utf8":
		return string(b), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(b), nil
	case "hex":
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("%w: unknown encoding %q", ErrInvalidInput, encoding)
	}
}
