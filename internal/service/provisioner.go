package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/download"
	"github.com/Strob0t/lspkit/internal/logger"
	"github.com/Strob0t/lspkit/internal/port/release"
	"github.com/Strob0t/lspkit/internal/port/status"
	"github.com/Strob0t/lspkit/internal/port/transport"
	"github.com/Strob0t/lspkit/internal/port/worktree"
)

// Provisioner guarantees a runnable executable for one language server.
// Resolution order: system search path, in-memory cache, latest release
// (downloading and installing it when absent). Concurrent Resolve calls
// share a single in-flight resolution.
type Provisioner struct {
	server   lsp.Server
	workDir  string
	platform lsp.Platform

	releases release.Source
	files    transport.Transport
	status   status.Sink
	pool     *download.Pool
	metrics  *cfotel.Metrics

	flight singleflight.Group

	mu         sync.Mutex
	cachedPath string
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithPlatform overrides the host platform (launcher script extension).
func WithPlatform(p lsp.Platform) ProvisionerOption {
	return func(pr *Provisioner) { pr.platform = p }
}

// WithDownloadPool bounds downloads with a pool shared across provisioners.
func WithDownloadPool(p *download.Pool) ProvisionerOption {
	return func(pr *Provisioner) { pr.pool = p }
}

// WithMetrics records resolution metrics.
func WithMetrics(m *cfotel.Metrics) ProvisionerOption {
	return func(pr *Provisioner) { pr.metrics = m }
}

// NewProvisioner creates a provisioner for server. Installed versions live in
// <baseDir>/<server id>/<version dir>.
func NewProvisioner(server lsp.Server, baseDir string, releases release.Source, files transport.Transport, sink status.Sink, opts ...ProvisionerOption) *Provisioner {
	if sink == nil {
		sink = status.Nop{}
	}
	p := &Provisioner{
		server:   server,
		workDir:  filepath.Join(baseDir, string(server.ID)),
		platform: lsp.CurrentPlatform(),
		releases: releases,
		files:    files,
		status:   sink,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Server returns the server this provisioner manages.
func (p *Provisioner) Server() lsp.Server { return p.server }

// WorkDir returns the working area holding installed versions.
func (p *Provisioner) WorkDir() string { return p.workDir }

// CachedPath returns the last known-good executable path, if any.
func (p *Provisioner) CachedPath() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cachedPath, p.cachedPath != ""
}

// Resolve returns the path of a runnable server executable, installing the
// latest release when needed.
func (p *Provisioner) Resolve(ctx context.Context, wt worktree.Worktree) (string, error) {
	ctx = logger.WithServerID(ctx, string(p.server.ID))
	ctx, span := cfotel.StartResolveSpan(ctx, string(p.server.ID))
	start := time.Now()

	path, outcome, err := p.resolve(ctx, wt)
	if err != nil {
		outcome = cfotel.OutcomeError
	}
	p.metrics.RecordResolution(ctx, string(p.server.ID), outcome, time.Since(start))
	cfotel.EndSpan(span, err)
	return path, err
}

func (p *Provisioner) resolve(ctx context.Context, wt worktree.Worktree) (string, string, error) {
	if path, ok := wt.Which(p.server.BinaryName); ok {
		slog.DebugContext(ctx, "using system language server", "path", path)
		return path, cfotel.OutcomeSystem, nil
	}

	if path, ok := p.liveCachedPath(); ok {
		return path, cfotel.OutcomeCached, nil
	}

	// The shared work must not be cancelled by whichever caller started it.
	ch := p.flight.DoChan(string(p.server.ID), func() (any, error) {
		return p.install(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", "", res.Err
		}
		r := res.Val.(installResult)
		return r.path, r.outcome, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

type installResult struct {
	path    string
	outcome string
}

// install runs the version check, download, and prune steps. It is only
// entered through the singleflight group.
func (p *Provisioner) install(ctx context.Context) (installResult, error) {
	// A flight that finished just before this one started may have filled the cache.
	if path, ok := p.liveCachedPath(); ok {
		return installResult{path: path, outcome: cfotel.OutcomeCached}, nil
	}

	res, err := p.installLatest(ctx)
	if err != nil {
		p.report(ctx, lsp.InstallationStatus{State: lsp.InstallationFailed, Message: err.Error()})
		return installResult{}, err
	}

	p.mu.Lock()
	p.cachedPath = res.path
	p.mu.Unlock()

	p.report(ctx, lsp.InstallationStatus{State: lsp.InstallationNone})
	return res, nil
}

func (p *Provisioner) installLatest(ctx context.Context) (installResult, error) {
	p.report(ctx, lsp.InstallationStatus{State: lsp.InstallationCheckingForUpdate})

	rel, err := p.releases.LatestRelease(ctx, p.server.Repo, lsp.ReleaseOptions{
		RequireAssets: true,
		PreRelease:    false,
	})
	if err != nil {
		return installResult{}, fmt.Errorf("latest release of %s: %w", p.server.Repo, err)
	}

	assetName := p.server.AssetName(rel.Version)
	asset, ok := rel.Asset(assetName)
	if !ok {
		return installResult{}, fmt.Errorf("%w: no asset found matching %q", lsp.ErrNotFound, assetName)
	}

	binaryPath := p.path(p.server.LauncherPath(rel.Version, p.platform))
	if p.files.IsFile(binaryPath) {
		slog.DebugContext(ctx, "language server version already installed", "version", rel.Version, "path", binaryPath)
		return installResult{path: binaryPath, outcome: cfotel.OutcomeExisting}, nil
	}

	if err := p.downloadAndInstall(ctx, rel.Version, asset, binaryPath); err != nil {
		return installResult{}, err
	}

	slog.InfoContext(ctx, "language server installed", "version", rel.Version, "path", binaryPath)
	return installResult{path: binaryPath, outcome: cfotel.OutcomeInstalled}, nil
}

func (p *Provisioner) downloadAndInstall(ctx context.Context, version string, asset lsp.Asset, binaryPath string) error {
	p.report(ctx, lsp.InstallationStatus{State: lsp.InstallationDownloading})

	versionDir := p.server.VersionDir(version)
	err := p.pool.Run(ctx, func(ctx context.Context) error {
		ctx, span := cfotel.StartDownloadSpan(ctx, string(p.server.ID), version, asset.DownloadURL)
		err := p.files.Download(ctx, asset.DownloadURL, p.path(versionDir), p.server.Archive)
		cfotel.EndSpan(span, err)
		return err
	})
	p.metrics.RecordDownload(ctx, string(p.server.ID), version, err == nil)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	if !p.files.IsFile(binaryPath) {
		return fmt.Errorf("%w: launcher %s missing after install", lsp.ErrNotFound, binaryPath)
	}
	if err := p.files.MarkExecutable(binaryPath); err != nil {
		return fmt.Errorf("mark %s executable: %w", binaryPath, err)
	}
	for _, script := range p.server.AuxScripts {
		path := p.path(p.server.ScriptPath(version, script, p.platform))
		if !p.files.IsFile(path) {
			slog.DebugContext(ctx, "auxiliary script not shipped in release", "script", script, "version", version)
			continue
		}
		if err := p.files.MarkExecutable(path); err != nil {
			return fmt.Errorf("mark %s executable: %w", path, err)
		}
	}

	p.prune(ctx, versionDir)
	return nil
}

// prune removes every working-area entry except keep. Failures are logged
// and counted, never returned.
func (p *Provisioner) prune(ctx context.Context, keep string) {
	entries, err := p.files.ListDir(p.workDir)
	if err != nil {
		slog.WarnContext(ctx, "failed to list working directory", "dir", p.workDir, "error", err)
		p.metrics.RecordPruneFailure(ctx, string(p.server.ID))
		return
	}

	var removed int
	var errs []error
	for _, name := range entries {
		if name == keep {
			continue
		}
		if err := p.files.RemoveAll(filepath.Join(p.workDir, name)); err != nil {
			errs = append(errs, fmt.Errorf("%w: remove %s: %w", lsp.ErrFilesystem, name, err))
			p.metrics.RecordPruneFailure(ctx, string(p.server.ID))
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		slog.WarnContext(ctx, "failed to prune old versions", "kept", keep, "removed", removed, "error", errors.Join(errs...))
		return
	}
	if removed > 0 {
		slog.InfoContext(ctx, "pruned old versions", "kept", keep, "removed", removed)
	}
}

// liveCachedPath returns the cached path if it still names a file.
func (p *Provisioner) liveCachedPath() (string, bool) {
	p.mu.Lock()
	path := p.cachedPath
	p.mu.Unlock()

	if path != "" && p.files.IsFile(path) {
		return path, true
	}
	return "", false
}

func (p *Provisioner) path(rel string) string {
	return filepath.Join(p.workDir, filepath.FromSlash(rel))
}

func (p *Provisioner) report(ctx context.Context, st lsp.InstallationStatus) {
	p.status.Report(ctx, p.server.ID, st)
}
