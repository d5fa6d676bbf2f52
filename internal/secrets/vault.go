// Package secrets holds credentials that can be rotated without a restart.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// ReleaseToken is the key of the release registry token.
const ReleaseToken = "release_token"

// Loader produces the current set of secrets.
type Loader func() (map[string]string, error)

// Vault keeps the last successfully loaded secrets in memory.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault loads the initial secrets. A failing loader is an error here but
// not on later reloads.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the secret for key, or "" when unset.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Getter binds key to the vault so consumers always see the current value.
func (v *Vault) Getter(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload swaps in freshly loaded secrets. On error the previous values stay.
func (v *Vault) Reload() error {
	vals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	return nil
}

// ReloadOn reloads the vault each time sigs delivers, until ctx is done.
func (v *Vault) ReloadOn(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			if err := v.Reload(); err != nil {
				slog.ErrorContext(ctx, "secret reload failed", "signal", sig.String(), "error", err)
				continue
			}
			slog.InfoContext(ctx, "secrets reloaded", "signal", sig.String())
		}
	}
}
