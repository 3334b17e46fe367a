// Package update checks GitHub releases for newer switchboard builds and
// replaces the running binary.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultAPIBase is the GitHub REST endpoint.
const DefaultAPIBase = "https://api.github.com"

// ErrNoAsset is returned when a release has no binary for this platform.
var ErrNoAsset = errors.New("update: no release asset for this platform")

// Release is a published build for the current platform.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Updater checks for and applies releases of one repository.
type Updater struct {
	CurrentVersion string
	Owner          string
	Repo           string
	APIBase        string
	GOOS, GOARCH   string

	httpClient *http.Client
}

// New returns an Updater for GoCodeAlone/switchboard.
func New(currentVersion string) *Updater {
	return &Updater{
		CurrentVersion: currentVersion,
		Owner:          "GoCodeAlone",
		Repo:           "switchboard",
		APIBase:        DefaultAPIBase,
		GOOS:           runtime.GOOS,
		GOARCH:         runtime.GOARCH,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Check returns the latest release, or nil when the current build is
// already the latest or is a dev build.
func (u *Updater) Check(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(u.APIBase, "/"), u.Owner, u.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("update: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "switchboard/"+u.CurrentVersion)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("update: fetch latest release: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update: github returned %d", resp.StatusCode)
	}
	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("update: decode release: %w", err)
	}

	if u.CurrentVersion == "dev" || strings.TrimPrefix(rel.TagName, "v") == strings.TrimPrefix(u.CurrentVersion, "v") {
		return nil, nil
	}
	url = u.assetURL(rel.Assets)
	if url == "" {
		return nil, fmt.Errorf("%w (%s/%s)", ErrNoAsset, u.GOOS, u.GOARCH)
	}
	return &Release{Version: rel.TagName, URL: url}, nil
}

// assetURL picks the asset whose name mentions both the OS and the
// architecture. amd64 is published as x86_64.
func (u *Updater) assetURL(assets []githubAsset) string {
	arch := u.GOARCH
	if arch == "amd64" {
		arch = "x86_64"
	}
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, u.GOOS) && strings.Contains(name, arch) {
			return a.BrowserDownloadURL
		}
	}
	return ""
}

// Apply downloads rel and atomically replaces the file at exe.
func (u *Updater) Apply(ctx context.Context, rel *Release, exe string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.URL, nil)
	if err != nil {
		return fmt.Errorf("update: build request: %w", err)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update: download: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update: download returned %d", resp.StatusCode)
	}

	// Same directory as exe so the rename cannot cross filesystems.
	tmp, err := os.CreateTemp(filepath.Dir(exe), ".switchboard-update-*")
	if err != nil {
		return fmt.Errorf("update: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("update: write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("update: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("update: chmod: %w", err)
	}
	if err := os.Rename(tmpPath, exe); err != nil {
		return fmt.Errorf("update: replace binary: %w", err)
	}
	return nil
}
