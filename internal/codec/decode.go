package codec

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoScheme is returned by Decode when none of the classification rules
// match the input.
var ErrNoScheme = errors.New("no encoding scheme matched")

// ErrUnchanged is returned when a transform completed structurally but
// produced content byte-identical to the input. Rejecting fixed points is
// what keeps repeated decoding from looping forever.
var ErrUnchanged = errors.New("decoded content identical to input")

// Decode attempts to strip exactly one encoding layer from input.
//
// The scheme is re-derived from the same priority rules as Classify rather
// than accepted as a parameter; callers that want the label for reporting
// must call Classify themselves, and the two can never disagree. Exactly one
// scheme is attempted — there is no fallback to the next candidate when the
// top match fails to decode.
func Decode(input string) (string, error) {
	var (
		decoded string
		err     error
	)

	switch label := Classify(input); label {
	case LabelBinary:
		decoded, err = decodeBinary(stripWhitespace(input))
	case LabelHex:
		decoded, err = decodeHex(stripWhitespace(input))
	case LabelURL:
		decoded, err = decodeURL(input)
	case LabelBase32:
		decoded, err = decodeBase32(stripWhitespace(input))
	case LabelBase64:
		decoded, err = decodeBase64(stripWhitespace(input))
	default:
		return "", ErrNoScheme
	}
	if err != nil {
		return "", err
	}
	if decoded == input {
		return "", ErrUnchanged
	}
	return decoded, nil
}

func decodeBinary(stripped string) (string, error) {
	if len(stripped)%8 != 0 {
		return "", fmt.Errorf("binary input length must be a multiple of 8, got %d", len(stripped))
	}
	out := make([]byte, 0, len(stripped)/8)
	for i := 0; i < len(stripped); i += 8 {
		val, err := strconv.ParseUint(stripped[i:i+8], 2, 8)
		if err != nil {
			return "", fmt.Errorf("invalid binary octet at offset %d: %w", i, err)
		}
		out = append(out, byte(val))
	}
	return string(out), nil
}

func decodeHex(stripped string) (string, error) {
	out, err := hex.DecodeString(stripped)
	if err != nil {
		return "", fmt.Errorf("hex decode failed: %w", err)
	}
	return string(out), nil
}

// decodeURL percent-decodes %XX triplets and passes every other byte through
// unchanged, including + and malformed escapes. The transform is total, so a
// string whose percent signs start no valid escape decodes to itself and is
// rejected by the change-gate in Decode rather than here.
func decodeURL(raw string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); {
		if raw[i] == '%' && i+2 < len(raw) {
			hi, okHi := unhex(raw[i+1])
			lo, okLo := unhex(raw[i+2])
			if okHi && okLo {
				sb.WriteByte(hi<<4 | lo)
				i += 3
				continue
			}
		}
		sb.WriteByte(raw[i])
		i++
	}
	return sb.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func decodeBase32(stripped string) (string, error) {
	out, err := base32.StdEncoding.DecodeString(stripped)
	if err != nil {
		return "", fmt.Errorf("base32 decode failed: %w", err)
	}
	return string(out), nil
}

func decodeBase64(stripped string) (string, error) {
	out, err := base64.StdEncoding.DecodeString(stripped)
	if err != nil {
		return "", fmt.Errorf("base64 decode failed: %w", err)
	}
	return string(out), nil
}
