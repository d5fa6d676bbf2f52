package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/lspkit/internal/adapter/github"
	"github.com/Strob0t/lspkit/internal/adapter/natskv"
	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/adapter/ristretto"
	"github.com/Strob0t/lspkit/internal/adapter/tiered"
	"github.com/Strob0t/lspkit/internal/adapter/transport"
	"github.com/Strob0t/lspkit/internal/adapter/worktree"
	"github.com/Strob0t/lspkit/internal/config"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/download"
	"github.com/Strob0t/lspkit/internal/port/release"
	"github.com/Strob0t/lspkit/internal/port/status"
	wtport "github.com/Strob0t/lspkit/internal/port/worktree"
	"github.com/Strob0t/lspkit/internal/resilience"
	"github.com/Strob0t/lspkit/internal/secrets"
	"github.com/Strob0t/lspkit/internal/service"
)

// formatters maps servers to their label formatter. Servers without one get
// no label service.
var formatters = map[lsp.ServerID]service.LabelFormatter{
	lsp.ElixirLS.ID: service.ElixirFormatter{},
}

// app is the wired service graph shared by every command.
type app struct {
	servers *service.ServerService
	secrets *secrets.Vault
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp registers every known language server with its provisioner and
// label service. A non-nil js shares release lookups through a NATS KV bucket.
func buildApp(ctx context.Context, cfg *config.Config, sink status.Sink, js jetstream.JetStream) (*app, error) {
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	vault, err := secrets.NewVault(secrets.Chain(
		secrets.Static(secrets.ReleaseToken, cfg.Release.Token),
		secrets.File(secrets.ReleaseToken, cfg.Release.TokenFile),
	))
	if err != nil {
		return nil, err
	}

	releases := github.NewClient(cfg.Release.APIURL, "", cfg.Release.Timeout)
	releases.SetTokenSource(vault.Getter(secrets.ReleaseToken))
	releases.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.WithName("release-registry"),
		resilience.WithFailurePredicate(github.IsBreakerFailure),
	))

	files := transport.New(cfg.Provision.DownloadTimeout)
	pool := download.NewPool(cfg.Provision.DownloadConcurrency)

	a := &app{servers: service.NewServerService(), secrets: vault}

	var source release.Source = releases
	if cfg.Cache.ReleaseTTL > 0 {
		rc, err := newReleaseCache(ctx, cfg.Cache, js)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.close)
		source = service.NewCachedReleases(releases, rc.cache, cfg.Cache.ReleaseTTL, metrics)
	}

	for _, server := range lsp.Servers {
		p := service.NewProvisioner(server, cfg.Provision.WorkDir, source, files, sink,
			service.WithDownloadPool(pool),
			service.WithMetrics(metrics),
		)

		var labels *service.LabelService
		if f, ok := formatters[server.ID]; ok {
			labelCache, err := ristretto.New[service.LabelEntry](cfg.Cache.LabelMaxCost)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("label cache for %s: %w", server.ID, err)
			}
			a.closers = append(a.closers, labelCache.Close)
			labels = service.NewLabelService(f, labelCache, cfg.Cache.LabelTTL, metrics)
		}

		a.servers.Register(server.ID, p, labels)
		slog.Info("language server registered", "server_id", server.ID, "work_dir", p.WorkDir())
	}
	return a, nil
}

type releaseCache struct {
	cache service.ReleaseCache
	close func()
}

// newReleaseCache builds the in-process release cache, layered over the
// shared KV bucket when js is set.
func newReleaseCache(ctx context.Context, cfg config.Cache, js jetstream.JetStream) (*releaseCache, error) {
	l1, err := ristretto.New[[]byte](cfg.ReleaseMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("release cache: %w", err)
	}
	rc := &releaseCache{cache: l1, close: l1.Close}
	if js == nil || cfg.ReleaseBucket == "" {
		return rc, nil
	}

	l2, err := natskv.Open(ctx, js, cfg.ReleaseBucket, cfg.ReleaseTTL)
	if err != nil {
		l1.Close()
		return nil, err
	}
	rc.cache = tiered.New[[]byte](l1, l2, cfg.ReleaseTTL)
	slog.Info("release lookups shared via nats kv", "bucket", cfg.ReleaseBucket)
	return rc, nil
}

// worktreeOpener opens worktrees rooted at an absolute directory, falling
// back to the configured root.
func worktreeOpener(cfg config.Worktree) func(root string) (wtport.Worktree, error) {
	return func(root string) (wtport.Worktree, error) {
		if root == "" {
			root = cfg.Root
		} else if !filepath.IsAbs(root) {
			return nil, errors.New("worktree root must be absolute")
		}
		st, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("worktree root: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("worktree root %s is not a directory", root)
		}
		wt, err := worktree.New(root, cfg.SettingsFile, cfg.PathEnv)
		if err != nil {
			return nil, err
		}
		return wt, nil
	}
}

// initTelemetry installs the OTLP providers and returns their shutdown hook.
func initTelemetry(ctx context.Context, cfg config.Telemetry) (func(), error) {
	shutdown, err := cfotel.Init(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}, nil
}
