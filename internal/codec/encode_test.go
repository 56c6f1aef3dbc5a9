package codec

import "testing"

func TestEncodeRoundTrips(t *testing.T) {
	const plain = "Hello, World!"

	for _, scheme := range []Label{LabelBinary, LabelHex, LabelURL, LabelBase32, LabelBase64} {
		t.Run(string(scheme), func(t *testing.T) {
			encoded, err := Encode(scheme, plain)
			if err != nil {
				t.Fatalf("Encode(%s) failed: %v", scheme, err)
			}
			if got := Classify(encoded); got != scheme {
				t.Fatalf("Classify(Encode(%s, %q)) = %q, want %q", scheme, plain, got, scheme)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", encoded, err)
			}
			if decoded != plain {
				t.Fatalf("round trip through %s = %q, want %q", scheme, decoded, plain)
			}
		})
	}
}

func TestEncodeUnknownScheme(t *testing.T) {
	if _, err := Encode(LabelUnknown, "data"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}
