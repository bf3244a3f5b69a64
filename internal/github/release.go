package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
)

const (
	// DefaultBaseURL is the GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// defaultTimeout bounds the metadata request when the caller provides none.
	defaultTimeout = 10 * time.Second
)

var (
	// ErrReleaseNotFound indicates the repository has no published release (HTTP 404).
	ErrReleaseNotFound = errors.New("no release published")
	// ErrBadHTTPStatus indicates the release endpoint answered with an unexpected status.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrAssetNotFound indicates the release carries no installable .deb asset.
	ErrAssetNotFound = errors.New("no .deb asset in release")
)

// AssetRef identifies a single downloadable file attached to a release.
type AssetRef struct {
	// Name is the asset filename as published.
	Name string `json:"name"`
	// DownloadURL is the direct download location of the asset.
	DownloadURL string `json:"browser_download_url"`
}

// ReleaseInfo is the resolved metadata of the latest published release.
// It is immutable once fetched and discarded after asset selection.
type ReleaseInfo struct {
	// Version is the release tag with a single leading "v" stripped.
	Version string
	// DisplayName is the human-readable release title.
	DisplayName string
	// ReleaseNotes is the optional release body text.
	ReleaseNotes string
	// Assets lists the downloadable files in the order the API returned them.
	Assets []AssetRef
}

// releaseResponse mirrors the fields of the GitHub "latest release" JSON object.
type releaseResponse struct {
	TagName string     `json:"tag_name"`
	Name    string     `json:"name"`
	Body    string     `json:"body"`
	Assets  []AssetRef `json:"assets"`
}

// Resolver queries the release API for the latest published release.
type Resolver struct {
	// baseURL is the API endpoint, overridable for tests.
	baseURL string
	// client is the HTTP client carrying the resolve timeout.
	client *http.Client
}

// Option configures resolver behaviour.
type Option func(*Resolver)

// WithBaseURL points the resolver at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(r *Resolver) {
		if url != "" {
			r.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithTimeout sets the per-request timeout for metadata fetches.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// NewResolver creates a release resolver with a short request timeout,
// so connectivity problems surface quickly.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve fetches metadata of the latest release in the given "owner/name"
// repository. A 404 maps to ErrReleaseNotFound; other non-200 statuses wrap
// ErrBadHTTPStatus; transport and decode failures are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, repository string) (*ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", r.baseURL, repository)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release info: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	switch {
	case response.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", repository, ErrReleaseNotFound)
	case response.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s, %s: %w", url, response.Status, ErrBadHTTPStatus)
	}

	var payload releaseResponse
	if err = json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode release info: %w", err)
	}

	info := &ReleaseInfo{
		Version:      strings.TrimPrefix(payload.TagName, "v"),
		DisplayName:  payload.Name,
		ReleaseNotes: payload.Body,
		Assets:       payload.Assets,
	}

	logger.InfoKV(ctx, "Resolved latest release",
		"repository", repository, "version", info.Version, "assets", len(info.Assets))

	return info, nil
}

// SelectAsset picks the distributable asset deterministically:
// first the exact expected filename, then a .deb whose name contains the
// target architecture, then the first .deb in release order.
// Releases publishing a single loosely named .deb stay installable.
func SelectAsset(assets []AssetRef, exactName, architecture string) (AssetRef, error) {
	for _, asset := range assets {
		if asset.Name == exactName {
			return asset, nil
		}
	}

	var first *AssetRef

	for i, asset := range assets {
		if !strings.HasSuffix(asset.Name, ".deb") {
			continue
		}

		if strings.Contains(asset.Name, architecture) {
			return asset, nil
		}

		if first == nil {
			first = &assets[i]
		}
	}

	if first != nil {
		return *first, nil
	}

	return AssetRef{}, fmt.Errorf("expected %s: %w", exactName, ErrAssetNotFound)
}
