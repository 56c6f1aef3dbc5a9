// Package trail persists the layers produced by a decode run as JSON Lines
// records so they can be diffed, archived, or fed to other tooling.
package trail

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SecScholar/Omni-Decoder/internal/codec"
	"github.com/SecScholar/Omni-Decoder/internal/unwrap"
)

// SchemaVersion is the trail record schema persisted to disk.
const SchemaVersion = "1.0"

// Record is one line of a decode trail: either a decoded layer or the
// closing record that carries the terminal state and final payload.
type Record struct {
	Version string `json:"version"`
	ID      string `json:"id"`
	Run     string `json:"run"`
	Depth   int    `json:"depth"`
	Label   string `json:"label,omitempty"`
	// Content holds printable payloads verbatim. Binary final payloads are
	// carried in ContentB64 instead so the file stays valid JSON Lines.
	Content    string    `json:"content,omitempty"`
	ContentB64 string    `json:"content_b64,omitempty"`
	Terminal   string    `json:"terminal,omitempty"`
	RecordedAt Timestamp `json:"ts"`
}

// NewLayerRecord builds a record for one decoded layer.
func NewLayerRecord(runID string, layer unwrap.Layer, now time.Time) Record {
	return Record{
		Version:    SchemaVersion,
		ID:         NewID(),
		Run:        runID,
		Depth:      layer.Depth,
		Label:      string(layer.Label),
		Content:    layer.Content,
		RecordedAt: NewTimestamp(now),
	}
}

// NewTerminalRecord builds the closing record for a run. Binary payloads are
// base64-wrapped; everything else is stored verbatim.
func NewTerminalRecord(runID string, res unwrap.Result, now time.Time) Record {
	rec := Record{
		Version:    SchemaVersion,
		ID:         NewID(),
		Run:        runID,
		Depth:      len(res.Layers),
		Terminal:   string(res.Terminal),
		RecordedAt: NewTimestamp(now),
	}
	if res.Terminal == unwrap.StoppedBinary {
		rec.ContentB64 = base64.StdEncoding.EncodeToString([]byte(res.Final))
	} else {
		rec.Content = res.Final
	}
	return rec
}

var terminalSet = map[string]struct{}{
	string(unwrap.StoppedUnknown):  {},
	string(unwrap.StoppedBinary):   {},
	string(unwrap.StoppedMaxDepth): {},
}

var labelSet = map[string]struct{}{
	string(codec.LabelBinary): {},
	string(codec.LabelHex):    {},
	string(codec.LabelURL):    {},
	string(codec.LabelBase32): {},
	string(codec.LabelBase64): {},
}

// Validate checks the record against the schema before it is persisted or
// after it is loaded.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Version) == "" {
		return errors.New("version is required")
	}
	if strings.TrimSpace(r.Version) != SchemaVersion {
		return fmt.Errorf("unsupported version %q", r.Version)
	}
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	if _, err := decodeULID(strings.TrimSpace(r.ID)); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	if strings.TrimSpace(r.Run) == "" {
		return errors.New("run id is required")
	}
	if r.Depth < 0 {
		return fmt.Errorf("negative depth %d", r.Depth)
	}
	if r.Terminal != "" {
		if _, ok := terminalSet[r.Terminal]; !ok {
			return fmt.Errorf("invalid terminal: %q", r.Terminal)
		}
	} else {
		if _, ok := labelSet[r.Label]; !ok {
			return fmt.Errorf("invalid label: %q", r.Label)
		}
		if r.Depth < 1 {
			return errors.New("layer records require depth >= 1")
		}
	}
	if r.Content != "" && r.ContentB64 != "" {
		return errors.New("content and content_b64 are mutually exclusive")
	}
	if r.ContentB64 != "" {
		if _, err := base64.StdEncoding.DecodeString(r.ContentB64); err != nil {
			return fmt.Errorf("invalid content_b64: %w", err)
		}
	}
	if r.RecordedAt.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}

// Timestamp enforces RFC3339 encoding for persisted records.
type Timestamp time.Time

// NewTimestamp normalises the input time before persisting it.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp(t.UTC().Truncate(time.Second))
}

// Time exposes the underlying time value.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero reports whether the timestamp has been initialised.
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// MarshalJSON renders the timestamp using time.RFC3339. Zero values encode
// as an empty string so Validate can flag them explicitly.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + tt.UTC().Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON enforces RFC3339 timestamps when reading persisted records.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(string(data), `"`))
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid ts timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// NewID generates a ULID for record and run identifiers.
func NewID() string {
	buf := make([]byte, 16)
	ts := uint64(time.Now().UTC().UnixMilli())
	for i := 5; i >= 0; i-- {
		buf[i] = byte(ts & 0xFF)
		ts >>= 8
	}
	if _, err := io.ReadFull(rand.Reader, buf[6:]); err != nil {
		// Fall back to deterministic bytes derived from the current time so
		// restricted environments never panic.
		nano := uint64(time.Now().UTC().UnixNano())
		for i := 6; i < len(buf); i++ {
			buf[i] = byte(nano & 0xFF)
			nano >>= 8
		}
	}
	return crockford.EncodeToString(buf)
}

func decodeULID(id string) ([]byte, error) {
	if id == "" {
		return nil, errors.New("ulid is empty")
	}
	if len(id) != 26 {
		return nil, fmt.Errorf("ulid must be 26 characters, got %d", len(id))
	}
	upper := strings.ToUpper(id)
	if upper != id {
		return nil, errors.New("ulid must be upper-case")
	}
	decoded, err := crockford.DecodeString(upper)
	if err != nil {
		return nil, fmt.Errorf("decode ulid: %w", err)
	}
	if len(decoded) != 16 {
		return nil, fmt.Errorf("decoded ulid length %d", len(decoded))
	}
	return decoded, nil
}
