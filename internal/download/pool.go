// Package download bounds how many release assets are fetched at once.
package download

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is the process-wide download budget. Each provisioner already
// collapses its own callers into one install, so the only remaining fan-out
// is across servers: a host that starts several language servers together
// would otherwise pull every release archive in parallel and extract them
// onto the same disk. One Pool is created by the composition root and handed
// to every provisioner.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool admitting limit downloads; values below 1 mean 1.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run downloads with fn once a slot frees up. A caller cancelled while
// queued gets ctx.Err() and fn never starts. A nil Pool runs fn unbounded,
// which is what tests and single-server tools want.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if p == nil || p.sem == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
