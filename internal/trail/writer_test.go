package trail

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SecScholar/Omni-Decoder/internal/codec"
	"github.com/SecScholar/Omni-Decoder/internal/unwrap"
)

func TestWriterAppendsValidRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.jsonl")
	w := NewWriter(path)

	run := NewID()
	layers := []unwrap.Layer{
		{Depth: 1, Label: codec.LabelBase64, Content: "6368616c6c656e6765"},
		{Depth: 2, Label: codec.LabelHex, Content: "challenge"},
	}
	for _, l := range layers {
		if err := w.Write(NewLayerRecord(run, l, time.Now())); err != nil {
			t.Fatalf("write layer: %v", err)
		}
	}
	res := unwrap.Result{Terminal: unwrap.StoppedUnknown, Final: "challenge", Layers: layers}
	if err := w.Write(NewTerminalRecord(run, res, time.Now())); err != nil {
		t.Fatalf("write terminal: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trail: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		if err := rec.Validate(); err != nil {
			t.Fatalf("persisted record invalid: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Depth != 1 || records[1].Depth != 2 {
		t.Fatalf("layer depths out of order: %d, %d", records[0].Depth, records[1].Depth)
	}
	if records[2].Terminal != string(unwrap.StoppedUnknown) {
		t.Fatalf("terminal = %q, want %q", records[2].Terminal, unwrap.StoppedUnknown)
	}
	for _, rec := range records {
		if rec.Run != run {
			t.Fatalf("record %s carries run %q, want %q", rec.ID, rec.Run, run)
		}
	}
}

func TestWriterRejectsInvalidRecord(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "trail.jsonl"))
	defer w.Close()

	rec := validLayerRecord()
	rec.Label = "rot13"
	if err := w.Write(rec); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWriterRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trail.jsonl")
	// Threshold small enough that a handful of records trips rotation.
	w := NewWriter(path, WithMaxBytes(256), WithMaxRotations(2))

	run := NewID()
	for i := 0; i < 12; i++ {
		layer := unwrap.Layer{Depth: i + 1, Label: codec.LabelHex, Content: "6368616c6c656e6765"}
		if err := w.Write(NewLayerRecord(run, layer, time.Now())); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("active trail file missing: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("rotated trail file missing: %v", err)
	}
}
