// Package lsp defines domain types for language-server provisioning and for
// presenting completion and symbol items returned by a running server.
// These types are transport-independent and shared by the service, adapter,
// and handler layers.
package lsp

import "errors"

// ServerID names a language server (e.g. "elixir-ls"). It namespaces the
// working area that holds installed versions.
type ServerID string

// Domain errors. Adapters and services wrap these with context; callers test
// them with errors.Is.
var (
	// ErrNotFound covers a missing release, a missing release asset, or a
	// launcher that is absent after installation.
	ErrNotFound = errors.New("not found")

	// ErrTransport covers network, download, and extraction failures.
	ErrTransport = errors.New("transport failure")

	// ErrFilesystem covers directory listing and removal failures.
	ErrFilesystem = errors.New("filesystem failure")

	// ErrConfigurationUnavailable signals that worktree settings could not be read.
	ErrConfigurationUnavailable = errors.New("configuration unavailable")

	// ErrUnknownServer is returned when no server is registered for an ID.
	ErrUnknownServer = errors.New("unknown language server")
)

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// Release describes the latest published release of a server.
type Release struct {
	Version string  `json:"version"`
	Assets  []Asset `json:"assets"`
}

// Asset returns the asset whose name equals name exactly.
func (r *Release) Asset(name string) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// ReleaseOptions narrows which releases qualify as "latest".
type ReleaseOptions struct {
	RequireAssets bool `json:"require_assets"`
	PreRelease    bool `json:"pre_release"`
}

// ArchiveKind tells the transport how to unpack a downloaded asset.
type ArchiveKind string

const (
	ArchiveZip          ArchiveKind = "zip"
	ArchiveGzip         ArchiveKind = "gzip"
	ArchiveTarGzip      ArchiveKind = "tar.gz"
	ArchiveUncompressed ArchiveKind = "uncompressed"
)

// InstallationState is the lifecycle signal reported while provisioning.
type InstallationState string

const (
	InstallationNone              InstallationState = "none"
	InstallationCheckingForUpdate InstallationState = "checking_for_update"
	InstallationDownloading       InstallationState = "downloading"
	InstallationFailed            InstallationState = "failed"
)

// InstallationStatus is a fire-and-forget observability event.
type InstallationStatus struct {
	State   InstallationState `json:"state"`
	Message string            `json:"message,omitempty"` // set when State is failed
}
