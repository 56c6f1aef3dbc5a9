// Command build_manifests assembles and signs the per-channel update
// manifests consumed by the odx self-updater.
//
// Given a release directory of freshly built binaries (and, optionally, the
// previous release's binaries), it computes SHA256 checksums, generates
// bsdiff delta patches, and emits manifest.json plus a detached ed25519
// signature per channel.
//
// Usage:
//
//	go run ./hack/updater \
//	  -version 1.1.0 -channel stable \
//	  -release-dir dist/1.1.0 -previous-dir dist/1.0.0 -previous-version 1.0.0 \
//	  -signing-key release-signing.key -out public/odx
package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kr/binarydist"

	"github.com/SecScholar/Omni-Decoder/internal/updater"
)

// platforms lists the OS/arch pairs released for every version.
var platforms = []struct {
	goos   string
	goarch string
}{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
	{"windows", "amd64"},
}

func main() {
	version := flag.String("version", "", "release version (required)")
	channel := flag.String("channel", updater.ChannelStable, "release channel")
	releaseDir := flag.String("release-dir", "", "directory holding the new binaries (required)")
	previousDir := flag.String("previous-dir", "", "directory holding the previous release's binaries (enables deltas)")
	previousVersion := flag.String("previous-version", "", "version the delta patches upgrade from")
	signingKey := flag.String("signing-key", "", "path to the ed25519 private key, base64-encoded (required)")
	notesURL := flag.String("notes-url", "", "release notes URL recorded in the manifest")
	outDir := flag.String("out", "public/odx", "output root; manifests land under <out>/<channel>/")
	flag.Parse()

	if err := run(*version, *channel, *releaseDir, *previousDir, *previousVersion, *signingKey, *notesURL, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "build_manifests: %v\n", err)
		os.Exit(1)
	}
}

func run(version, channel, releaseDir, previousDir, previousVersion, signingKeyPath, notesURL, outDir string) error {
	if version == "" || releaseDir == "" || signingKeyPath == "" {
		return fmt.Errorf("-version, -release-dir and -signing-key are required")
	}
	channel, err := updater.NormalizeChannel(channel)
	if err != nil {
		return err
	}
	if previousDir != "" && previousVersion == "" {
		return fmt.Errorf("-previous-version is required when -previous-dir is set")
	}
	priv, err := loadSigningKey(signingKeyPath)
	if err != nil {
		return err
	}

	channelDir := filepath.Join(outDir, channel)
	artifactDir := filepath.Join(channelDir, version)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	manifest := updater.Manifest{
		Version:     version,
		Channel:     channel,
		NotesURL:    notesURL,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for _, p := range platforms {
		name := binaryName(p.goos, p.goarch)
		newBinary, err := os.ReadFile(filepath.Join(releaseDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "skipping %s/%s: %s not built\n", p.goos, p.goarch, name)
				continue
			}
			return fmt.Errorf("read %s: %w", name, err)
		}

		build := updater.Build{
			OS:   p.goos,
			Arch: p.goarch,
			Full: updater.Artifact{
				URL:    path.Join(channel, version, name),
				SHA256: sha256Hex(newBinary),
			},
		}
		if err := os.WriteFile(filepath.Join(artifactDir, name), newBinary, 0o755); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}

		if previousDir != "" {
			delta, err := buildDelta(previousDir, artifactDir, name, previousVersion, channel, version, newBinary)
			if err != nil {
				return err
			}
			build.Delta = delta
		}

		manifest.Builds = append(manifest.Builds, build)
	}
	if len(manifest.Builds) == 0 {
		return fmt.Errorf("no binaries found in %s", releaseDir)
	}

	return writeSigned(channelDir, manifest, priv)
}

// buildDelta produces the bsdiff patch old→new for one platform. A missing
// previous binary is not fatal; that platform just ships without a delta.
func buildDelta(previousDir, artifactDir, name, previousVersion, channel, version string, newBinary []byte) (*updater.Delta, error) {
	oldBinary, err := os.ReadFile(filepath.Join(previousDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read previous %s: %w", name, err)
	}

	var patch bytes.Buffer
	if err := binarydist.Diff(bytes.NewReader(oldBinary), bytes.NewReader(newBinary), &patch); err != nil {
		return nil, fmt.Errorf("bsdiff %s: %w", name, err)
	}
	patchName := name + ".patch"
	if err := os.WriteFile(filepath.Join(artifactDir, patchName), patch.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("publish %s: %w", patchName, err)
	}

	return &updater.Delta{
		FromVersion: previousVersion,
		URL:         path.Join(channel, version, patchName),
		SHA256:      sha256Hex(newBinary),
	}, nil
}

func writeSigned(channelDir string, manifest updater.Manifest, priv ed25519.PrivateKey) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(channelDir, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data))
	if err := os.WriteFile(manifestPath+".sig", []byte(sig+"\n"), 0o644); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}
	fmt.Printf("wrote %s (%d builds)\n", manifestPath, len(manifest.Builds))
	return nil
}

func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key has invalid length %d", len(key))
	}
	return ed25519.PrivateKey(key), nil
}

func binaryName(goos, goarch string) string {
	name := fmt.Sprintf("odx-%s-%s", goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
