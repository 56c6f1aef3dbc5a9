// Package updater implements signed self-updates for the odx binary: a
// channel manifest fetched over HTTPS, ed25519 signature verification, and
// in-place binary swaps with delta patch support.
package updater

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"runtime"
	"strings"
)

// DefaultBaseURL is the canonical endpoint for update manifests.
const DefaultBaseURL = "https://updates.secscholar.io/odx"

// releasePublicKeyBase64 holds the ed25519 public key that signs production
// manifests. Tests override it via the ODX_UPDATER_PUBLIC_KEY environment
// variable.
const releasePublicKeyBase64 = "mBoVxkHCYosr3q0jY8n+8pTG4W5LsyAWJ7XQJgpGvqM="

// Manifest describes the builds published for one channel.
type Manifest struct {
	Version     string  `json:"version"`
	Channel     string  `json:"channel"`
	NotesURL    string  `json:"notes_url,omitempty"`
	GeneratedAt string  `json:"generated_at,omitempty"`
	Builds      []Build `json:"builds"`
}

// Build describes how to update one OS/architecture pair.
type Build struct {
	OS   string   `json:"os"`
	Arch string   `json:"arch"`
	Full Artifact `json:"full"`
	// Delta, when present, patches a specific prior version instead of
	// downloading the full binary.
	Delta *Delta `json:"delta,omitempty"`
}

// Artifact references a full binary.
type Artifact struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Delta references a bsdiff patch against a prior version.
type Delta struct {
	FromVersion string `json:"from_version"`
	URL         string `json:"url"`
	SHA256      string `json:"sha256"`
}

// BuildFor returns the build entry matching the provided platform.
func (m Manifest) BuildFor(goos, goarch string) (Build, bool) {
	for _, b := range m.Builds {
		if strings.EqualFold(b.OS, goos) && strings.EqualFold(b.Arch, goarch) {
			return b, true
		}
	}
	return Build{}, false
}

// DecodeManifest parses and sanity-checks manifest JSON.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if strings.TrimSpace(m.Version) == "" {
		return Manifest{}, errors.New("manifest missing version")
	}
	if len(m.Builds) == 0 {
		return Manifest{}, errors.New("manifest missing builds")
	}
	return m, nil
}

// FetchManifest retrieves the manifest and its detached signature for the
// given channel and verifies the signature before parsing.
func FetchManifest(ctx context.Context, client *http.Client, baseURL, channel string) (Manifest, error) {
	if client == nil {
		client = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	channel, err := NormalizeChannel(channel)
	if err != nil {
		return Manifest{}, err
	}

	manifestURL, err := manifestURLFor(baseURL, channel)
	if err != nil {
		return Manifest{}, err
	}
	manifestData, err := download(ctx, client, manifestURL)
	if err != nil {
		return Manifest{}, err
	}
	sigData, err := download(ctx, client, manifestURL+".sig")
	if err != nil {
		return Manifest{}, fmt.Errorf("download manifest signature: %w", err)
	}

	sig, err := decodeSignature(sigData)
	if err != nil {
		return Manifest{}, err
	}
	pubKey, err := loadPublicKey()
	if err != nil {
		return Manifest{}, err
	}
	if !ed25519.Verify(pubKey, manifestData, sig) {
		return Manifest{}, errors.New("manifest signature verification failed")
	}

	return DecodeManifest(manifestData)
}

func manifestURLFor(baseURL, channel string) (string, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return "", errors.New("empty base URL")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	u.Path = path.Join(u.Path, channel, "manifest.json")
	return u.String(), nil
}

func download(ctx context.Context, client *http.Client, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("odx (%s/%s)", runtime.GOOS, runtime.GOARCH))
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", targetURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("download %s: unexpected status %d: %s", targetURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", targetURL, err)
	}
	return data, nil
}

func decodeSignature(raw []byte) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}
	return sig, nil
}

func loadPublicKey() (ed25519.PublicKey, error) {
	encoded := releasePublicKeyBase64
	if override := strings.TrimSpace(os.Getenv("ODX_UPDATER_PUBLIC_KEY")); override != "" {
		encoded = override
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode updater public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("updater public key has invalid length %d", len(key))
	}
	return ed25519.PublicKey(key), nil
}

// DecodeChecksum decodes a SHA256 checksum from its hex form.
func DecodeChecksum(sum string) ([]byte, error) {
	cleaned := strings.TrimSpace(sum)
	if cleaned == "" {
		return nil, errors.New("empty checksum")
	}
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}
	return b, nil
}
