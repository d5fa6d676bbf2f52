package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/cache"
	"github.com/Strob0t/lspkit/internal/port/release"
)

// ReleaseCache is the cache port specialised to encoded releases.
type ReleaseCache = cache.Cache[[]byte]

// CachedReleases remembers successful latest-release lookups for a TTL so
// that hosts restarting often stay under the registry's rate limit. Failures
// are never cached.
type CachedReleases struct {
	next    release.Source
	cache   ReleaseCache
	ttl     time.Duration
	metrics *cfotel.Metrics
}

// NewCachedReleases wraps next. The returned source satisfies release.Source.
func NewCachedReleases(next release.Source, c ReleaseCache, ttl time.Duration, metrics *cfotel.Metrics) *CachedReleases {
	return &CachedReleases{next: next, cache: c, ttl: ttl, metrics: metrics}
}

// LatestRelease implements release.Source.
func (s *CachedReleases) LatestRelease(ctx context.Context, repo string, opts lsp.ReleaseOptions) (*lsp.Release, error) {
	key := releaseCacheKey(repo, opts)

	data, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.DebugContext(ctx, "release cache get failed", "repo", repo, "error", err)
	case found:
		var rel lsp.Release
		if err := json.Unmarshal(data, &rel); err == nil {
			s.metrics.RecordReleaseLookup(ctx, repo, true)
			return &rel, nil
		}
		slog.WarnContext(ctx, "dropping undecodable cached release", "repo", repo)
		_ = s.cache.Delete(ctx, key)
	}

	rel, err := s.next.LatestRelease(ctx, repo, opts)
	s.metrics.RecordReleaseLookup(ctx, repo, false)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rel); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			slog.DebugContext(ctx, "release cache set failed", "repo", repo, "error", err)
		}
	}
	return rel, nil
}

// releaseCacheKey is also a valid NATS KV key for GitHub repository names.
func releaseCacheKey(repo string, opts lsp.ReleaseOptions) string {
	key := "release." + repo
	if opts.PreRelease {
		key += ".pre"
	} else {
		key += ".stable"
	}
	if opts.RequireAssets {
		key += ".assets"
	}
	return key
}
