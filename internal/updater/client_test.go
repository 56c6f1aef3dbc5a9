package updater

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kr/binarydist"
)

func writeFakeBinary(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "odx")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestClientUpdateFullArtifact(t *testing.T) {
	oldBinary := []byte("odx-binary-v1.0.0")
	newBinary := []byte("odx-binary-v1.1.0 with brand new decoder tables")
	target := writeFakeBinary(t, oldBinary)

	manifest := Manifest{
		Version: "1.1.0",
		Channel: ChannelStable,
		Builds: []Build{{
			OS:   "linux",
			Arch: "amd64",
			Full: Artifact{URL: "/artifacts/odx-1.1.0", SHA256: sha256Hex(newBinary)},
		}},
	}
	srv := signedManifestServer(t, manifest, map[string][]byte{
		"/artifacts/odx-1.1.0": newBinary,
	})

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client, err := NewClient(store, "1.0.0",
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
		WithPlatform("linux", "amd64"),
		WithExecutablePath(target),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := client.Update(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.UsedDelta {
		t.Fatal("full-only manifest reported a delta update")
	}
	if res.ToVersion != "1.1.0" || res.FromVersion != "1.0.0" {
		t.Fatalf("result versions = %+v", res)
	}

	swapped, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read updated binary: %v", err)
	}
	if !bytes.Equal(swapped, newBinary) {
		t.Fatalf("binary not replaced: %q", swapped)
	}
	backup, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(backup, oldBinary) {
		t.Fatalf("backup does not hold previous binary: %q", backup)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LastAppliedVersion != "1.1.0" || cfg.PreviousVersion != "1.0.0" {
		t.Fatalf("persisted config = %+v", cfg)
	}
}

func TestClientUpdatePrefersDelta(t *testing.T) {
	oldBinary := []byte("odx-binary-v1.0.0 padded for a plausible bsdiff input")
	newBinary := []byte("odx-binary-v1.1.0 padded for a plausible bsdiff input plus additions")
	target := writeFakeBinary(t, oldBinary)

	var patch bytes.Buffer
	if err := binarydist.Diff(bytes.NewReader(oldBinary), bytes.NewReader(newBinary), &patch); err != nil {
		t.Fatalf("binarydist.Diff: %v", err)
	}

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	manifest := Manifest{
		Version: "1.1.0",
		Channel: ChannelStable,
		Builds: []Build{{
			OS:   "linux",
			Arch: "amd64",
			Full: Artifact{URL: "/artifacts/full", SHA256: sha256Hex(newBinary)},
			Delta: &Delta{
				FromVersion: "1.0.0",
				URL:         "/artifacts/patch",
				SHA256:      sha256Hex(newBinary),
			},
		}},
	}
	srv := signedManifestServer(t, manifest, map[string][]byte{
		"/artifacts/full":  newBinary,
		"/artifacts/patch": patch.Bytes(),
	})

	client, err := NewClient(store, "1.0.0",
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
		WithPlatform("linux", "amd64"),
		WithExecutablePath(target),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := client.Update(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.UsedDelta {
		t.Fatal("delta-capable manifest fell back to the full artifact")
	}
	swapped, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read updated binary: %v", err)
	}
	if !bytes.Equal(swapped, newBinary) {
		t.Fatalf("patched binary mismatch: %q", swapped)
	}
}

func TestClientUpdateAlreadyCurrent(t *testing.T) {
	manifest := Manifest{
		Version: "1.0.0",
		Channel: ChannelStable,
		Builds:  []Build{{OS: "linux", Arch: "amd64"}},
	}
	srv := signedManifestServer(t, manifest, nil)

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client, err := NewClient(store, "1.0.0",
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
		WithPlatform("linux", "amd64"),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Update(context.Background(), ChannelStable); !errors.Is(err, ErrAlreadyCurrent) {
		t.Fatalf("Update err = %v, want ErrAlreadyCurrent", err)
	}
}

func TestClientRollback(t *testing.T) {
	oldBinary := []byte("odx-binary-v1.0.0")
	newBinary := []byte("odx-binary-v1.1.0")
	target := writeFakeBinary(t, newBinary)

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	backup := filepath.Join(store.Dir(), "odx.previous")
	if err := os.WriteFile(backup, oldBinary, 0o755); err != nil {
		t.Fatalf("seed backup: %v", err)
	}
	if err := store.Save(Config{
		Channel:            ChannelStable,
		LastAppliedVersion: "1.1.0",
		PreviousVersion:    "1.0.0",
		BackupPath:         backup,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	client, err := NewClient(store, "1.1.0", WithExecutablePath(target))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	restored, err := client.Rollback()
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if restored != "1.0.0" {
		t.Fatalf("restored version = %q, want 1.0.0", restored)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read rolled-back binary: %v", err)
	}
	if !bytes.Equal(got, oldBinary) {
		t.Fatalf("rollback did not restore previous binary: %q", got)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackupPath != "" || cfg.PreviousVersion != "" {
		t.Fatalf("rollback left stale state: %+v", cfg)
	}
}

func TestClientRollbackWithoutBackup(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client, err := NewClient(store, "1.0.0")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Rollback(); err == nil {
		t.Fatal("Rollback succeeded with no recorded backup")
	}
}
