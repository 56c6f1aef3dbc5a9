package codec

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encode applies a single encoding layer to input. It is the inverse of
// Decode for every supported scheme and exists so analysts can build nested
// test payloads (odx encode) and so tests can construct deep fixtures.
func Encode(scheme Label, input string) (string, error) {
	switch scheme {
	case LabelBinary:
		return encodeBinary(input), nil
	case LabelHex:
		return hex.EncodeToString([]byte(input)), nil
	case LabelURL:
		return encodeURL(input), nil
	case LabelBase32:
		return base32.StdEncoding.EncodeToString([]byte(input)), nil
	case LabelBase64:
		return base64.StdEncoding.EncodeToString([]byte(input)), nil
	default:
		return "", fmt.Errorf("unsupported encode scheme: %q", scheme)
	}
}

func encodeBinary(input string) string {
	var sb strings.Builder
	sb.Grow(len(input) * 8)
	for i := 0; i < len(input); i++ {
		fmt.Fprintf(&sb, "%08b", input[i])
	}
	return sb.String()
}

// encodeURL percent-encodes every byte outside the unreserved set so the
// result round-trips through decodeURL regardless of content.
func encodeURL(input string) string {
	var sb strings.Builder
	for i := 0; i < len(input); i++ {
		b := input[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.', b == '~':
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}
