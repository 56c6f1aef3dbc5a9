package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SecScholar/Omni-Decoder/internal/trail"
)

func TestRunDecodePayloadArgument(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := runDecode([]string{"NjM2ODYxNmM2YzY1NmU2NzY1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "[1] base64 6368616c6c656e6765") {
		t.Fatalf("missing first layer: %q", out)
	}
	if !strings.Contains(out, "[2] hex challenge") {
		t.Fatalf("missing second layer: %q", out)
	}
	if !strings.Contains(out, "Fully decoded after 2 layers.") {
		t.Fatalf("missing summary: %q", out)
	}
}

func TestRunDecodeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.txt")
	if err := os.WriteFile(path, []byte("6465616462656566\n"), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := runDecode([]string{"-f", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "[1] hex deadbeef") {
		t.Fatalf("trailing newline not stripped before decode: %q", stdout.String())
	}
}

func TestRunDecodeMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runDecode([]string{"-f", filepath.Join(t.TempDir(), "absent")}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "read input file") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunDecodeUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: nil},
		{name: "two payloads", args: []string{"a", "b"}},
		{name: "payload and file", args: []string{"-f", "x", "payload"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := runDecode(tc.args, &stdout, &stderr); code != 2 {
				t.Fatalf("exit code = %d, want 2", code)
			}
		})
	}
}

func TestRunDecodeWritesTrail(t *testing.T) {
	trailPath := filepath.Join(t.TempDir(), "trail.jsonl")

	var stdout, stderr bytes.Buffer
	code := runDecode([]string{"-out", trailPath, "NjM2ODYxNmM2YzY1NmU2NzY1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	f, err := os.Open(trailPath)
	if err != nil {
		t.Fatalf("open trail: %v", err)
	}
	defer f.Close()

	var records []trail.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec trail.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse trail line: %v", err)
		}
		if err := rec.Validate(); err != nil {
			t.Fatalf("invalid trail record: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan trail: %v", err)
	}

	// Two layers plus the terminal record, all sharing one run ID.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	run := records[0].Run
	for _, rec := range records {
		if rec.Run != run {
			t.Fatalf("mixed run ids: %q vs %q", rec.Run, run)
		}
	}
	if records[0].Label != "base64" || records[1].Label != "hex" {
		t.Fatalf("layer labels = %q, %q", records[0].Label, records[1].Label)
	}
	last := records[2]
	if last.Terminal != "no_match" || last.Content != "challenge" {
		t.Fatalf("terminal record = %+v", last)
	}
}

func TestRunDecodeWritesAuditLog(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")

	var stdout, stderr bytes.Buffer
	code := runDecode([]string{"-audit", auditPath, "NjM2ODYxNmM2YzY1NmU2NzY1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// input_load, two layer_decoded, run_stopped.
	if len(lines) != 4 {
		t.Fatalf("got %d audit events, want 4: %s", len(lines), data)
	}

	var first struct {
		EventType string `json:"event_type"`
		RunID     string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("parse audit event: %v", err)
	}
	if first.EventType != "input_load" {
		t.Fatalf("first event = %q, want input_load", first.EventType)
	}
	if first.RunID == "" {
		t.Fatal("audit events missing run id")
	}
	if !strings.Contains(lines[3], "run_stopped") || !strings.Contains(lines[3], "no_match") {
		t.Fatalf("last event = %q", lines[3])
	}
}

func TestRunDecodeMaxDepthFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	// Double-wrapped payload with the bound set to 1: one layer, then stop.
	code := runDecode([]string{"-max-depth", "1", "NjM2ODYxNmM2YzY1NmU2NzY1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Maximum decode depth reached after 1 layers.") {
		t.Fatalf("missing max-depth summary: %q", stdout.String())
	}
}
