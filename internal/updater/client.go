package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	update "github.com/inconshreveable/go-update"
)

// ErrAlreadyCurrent reports that the running binary matches the published
// version for the selected channel.
var ErrAlreadyCurrent = errors.New("binary already up to date")

// Client applies published updates to the running binary.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	store          *Store
	currentVersion string
	goos           string
	goarch         string
	execPath       func() (string, error)
	now            func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the manifest endpoint. ODX_UPDATER_BASE_URL takes
// effect when no explicit override is given.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithPlatform overrides the OS/arch pair used to select a build.
func WithPlatform(goos, goarch string) ClientOption {
	return func(c *Client) {
		c.goos = goos
		c.goarch = goarch
	}
}

// WithExecutablePath overrides resolution of the binary to replace.
func WithExecutablePath(path string) ClientOption {
	return func(c *Client) {
		c.execPath = func() (string, error) { return path, nil }
	}
}

// NewClient constructs an update client for the binary currently running
// version currentVersion, persisting state through store.
func NewClient(store *Store, currentVersion string, opts ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}
	c := &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Minute},
		baseURL:        DefaultBaseURL,
		store:          store,
		currentVersion: strings.TrimSpace(currentVersion),
		goos:           runtime.GOOS,
		goarch:         runtime.GOARCH,
		execPath:       os.Executable,
		now:            time.Now,
	}
	if env := strings.TrimSpace(os.Getenv("ODX_UPDATER_BASE_URL")); env != "" {
		c.baseURL = env
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Result summarizes an applied update.
type Result struct {
	FromVersion string
	ToVersion   string
	Channel     string
	UsedDelta   bool
	BackupPath  string
}

// Update fetches the channel manifest and swaps the running binary in place.
// A delta patch is preferred when the manifest offers one for the current
// version; the full artifact is the fallback. The replaced binary is kept at
// the backup path so Rollback can restore it.
func (c *Client) Update(ctx context.Context, channel string) (Result, error) {
	channel, err := NormalizeChannel(channel)
	if err != nil {
		return Result{}, err
	}
	manifest, err := FetchManifest(ctx, c.httpClient, c.baseURL, channel)
	if err != nil {
		return Result{}, err
	}
	if manifest.Version == c.currentVersion {
		return Result{}, ErrAlreadyCurrent
	}
	build, ok := manifest.BuildFor(c.goos, c.goarch)
	if !ok {
		return Result{}, fmt.Errorf("no build for %s/%s in manifest %s", c.goos, c.goarch, manifest.Version)
	}
	target, err := c.execPath()
	if err != nil {
		return Result{}, fmt.Errorf("resolve executable: %w", err)
	}
	backup := filepath.Join(c.store.Dir(), "odx.previous")

	res := Result{
		FromVersion: c.currentVersion,
		ToVersion:   manifest.Version,
		Channel:     channel,
		BackupPath:  backup,
	}

	if build.Delta != nil && build.Delta.FromVersion == c.currentVersion {
		if err := c.applyDelta(ctx, target, backup, *build.Delta); err == nil {
			res.UsedDelta = true
			return res, c.recordApplied(channel, manifest.Version, backup)
		}
		// Fall through to the full artifact on any delta failure.
	}
	if err := c.applyFull(ctx, target, backup, build.Full); err != nil {
		return Result{}, err
	}
	return res, c.recordApplied(channel, manifest.Version, backup)
}

func (c *Client) applyFull(ctx context.Context, target, backup string, art Artifact) error {
	checksum, err := DecodeChecksum(art.SHA256)
	if err != nil {
		return fmt.Errorf("full artifact: %w", err)
	}
	artifactURL, err := resolveURL(c.baseURL, art.URL)
	if err != nil {
		return fmt.Errorf("full artifact: %w", err)
	}
	payload, err := download(ctx, c.httpClient, artifactURL)
	if err != nil {
		return err
	}
	err = update.Apply(bytes.NewReader(payload), update.Options{
		TargetPath:  target,
		Checksum:    checksum,
		OldSavePath: backup,
	})
	if err != nil {
		if rbErr := update.RollbackError(err); rbErr != nil {
			return fmt.Errorf("apply full update failed and rollback failed: %w", rbErr)
		}
		return fmt.Errorf("apply full update: %w", err)
	}
	return nil
}

func (c *Client) applyDelta(ctx context.Context, target, backup string, delta Delta) error {
	checksum, err := DecodeChecksum(delta.SHA256)
	if err != nil {
		return fmt.Errorf("delta artifact: %w", err)
	}
	patchURL, err := resolveURL(c.baseURL, delta.URL)
	if err != nil {
		return fmt.Errorf("delta artifact: %w", err)
	}
	patch, err := download(ctx, c.httpClient, patchURL)
	if err != nil {
		return err
	}
	err = update.Apply(bytes.NewReader(patch), update.Options{
		TargetPath:  target,
		Checksum:    checksum,
		Patcher:     update.NewBSDiffPatcher(),
		OldSavePath: backup,
	})
	if err != nil {
		if rbErr := update.RollbackError(err); rbErr != nil {
			return fmt.Errorf("apply delta update failed and rollback failed: %w", rbErr)
		}
		return fmt.Errorf("apply delta update: %w", err)
	}
	return nil
}

// resolveURL makes artifact references absolute. Manifests may reference
// artifacts relative to the manifest endpoint or by absolute URL.
func resolveURL(baseURL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse artifact URL %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

func (c *Client) recordApplied(channel, version, backup string) error {
	cfg, err := c.store.Load()
	if err != nil {
		return err
	}
	cfg.Channel = channel
	cfg.PreviousVersion = c.currentVersion
	cfg.LastAppliedVersion = version
	cfg.BackupPath = backup
	cfg.LastAppliedAt = c.now().UTC()
	return c.store.Save(cfg)
}

// Rollback restores the binary saved by the last successful update.
func (c *Client) Rollback() (string, error) {
	cfg, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if cfg.BackupPath == "" {
		return "", errors.New("no previous binary recorded")
	}
	backup, err := os.ReadFile(cfg.BackupPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("backup %s is missing", cfg.BackupPath)
		}
		return "", fmt.Errorf("read backup: %w", err)
	}
	target, err := c.execPath()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if err := update.Apply(bytes.NewReader(backup), update.Options{TargetPath: target}); err != nil {
		return "", fmt.Errorf("restore previous binary: %w", err)
	}

	restored := cfg.PreviousVersion
	cfg.LastAppliedVersion = restored
	cfg.PreviousVersion = ""
	cfg.BackupPath = ""
	if err := c.store.Save(cfg); err != nil {
		return restored, err
	}
	return restored, nil
}
