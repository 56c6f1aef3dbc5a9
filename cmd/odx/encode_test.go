package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunEncodeDefaultsToBase64(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runEncode([]string{"challenge"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "Y2hhbGxlbmdl" {
		t.Fatalf("encoded = %q", got)
	}
}

func TestRunEncodeScheme(t *testing.T) {
	tests := []struct {
		scheme string
		in     string
		want   string
	}{
		{scheme: "hex", in: "challenge", want: "6368616c6c656e6765"},
		{scheme: "binary", in: "a", want: "01100001"},
		{scheme: "url", in: "a b", want: "a%20b"},
		{scheme: "base32", in: "hello", want: "NBSWY3DP"},
	}
	for _, tc := range tests {
		t.Run(tc.scheme, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runEncode([]string{"-scheme", tc.scheme, tc.in}, &stdout, &stderr)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
			}
			if got := strings.TrimSpace(stdout.String()); got != tc.want {
				t.Fatalf("encoded = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRunEncodeRejectsUnknownScheme(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runEncode([]string{"-scheme", "rot13", "payload"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunEncodeUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runEncode(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}
