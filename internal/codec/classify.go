// Package codec infers and reverses the text encodings commonly layered onto
// payloads during obfuscation: binary (base2), hex (base16), URL
// percent-encoding, Base32, and Base64.
package codec

import (
	"regexp"
	"strings"
	"unicode"
)

// Label identifies the encoding scheme inferred for a payload.
type Label string

const (
	LabelBinary  Label = "binary"
	LabelHex     Label = "hex"
	LabelURL     Label = "url"
	LabelBase32  Label = "base32"
	LabelBase64  Label = "base64"
	LabelUnknown Label = "unknown"
)

var (
	binaryPattern = regexp.MustCompile(`^[01]+$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	base32Pattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)
)

// Classify infers the most likely encoding of raw.
//
// The character classes overlap (binary digits are hex digits, hex digits sit
// inside the Base64 alphabet), so rules are checked in a fixed priority order
// and the first match wins: binary > hex > url > base32 > base64 > unknown.
// Decode relies on the same order; keeping a single classifier is what
// guarantees the reported label and the applied transform never diverge.
//
// All rules except url evaluate a whitespace-stripped view of the input. The
// url rule inspects the raw string so that meaningful percent sequences are
// never disturbed; a single bare % is enough to match, well-formedness of the
// escapes is only checked at decode time.
func Classify(raw string) Label {
	stripped := stripWhitespace(raw)

	switch {
	case stripped != "" && len(stripped)%8 == 0 && binaryPattern.MatchString(stripped):
		return LabelBinary
	case stripped != "" && len(stripped)%2 == 0 && hexPattern.MatchString(stripped):
		return LabelHex
	case strings.ContainsRune(raw, '%'):
		return LabelURL
	case base32Pattern.MatchString(stripped):
		return LabelBase32
	case len(stripped)%4 == 0 && base64Pattern.MatchString(stripped):
		return LabelBase64
	default:
		return LabelUnknown
	}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
