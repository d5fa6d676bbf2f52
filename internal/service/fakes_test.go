package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// fakeWorktree is an in-memory worktree.
type fakeWorktree struct {
	system      map[string]string
	settings    json.RawMessage
	settingsErr error
	initOpts    json.RawMessage
}

func (w *fakeWorktree) Root() string { return "/work" }

func (w *fakeWorktree) Which(name string) (string, bool) {
	p, ok := w.system[name]
	return p, ok
}

func (w *fakeWorktree) SettingsFor(lsp.ServerID) (json.RawMessage, error) {
	return w.settings, w.settingsErr
}

func (w *fakeWorktree) InitializationOptionsFor(lsp.ServerID) (json.RawMessage, error) {
	return w.initOpts, nil
}

// fakeReleases returns a fixed release and counts lookups.
type fakeReleases struct {
	release *lsp.Release
	err     error
	calls   atomic.Int32
	delay   time.Duration
}

func (r *fakeReleases) LatestRelease(_ context.Context, _ string, opts lsp.ReleaseOptions) (*lsp.Release, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if !opts.RequireAssets || opts.PreRelease {
		return nil, errors.New("unexpected release options")
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.release, nil
}

// fakeTransport works on the real filesystem but "downloads" by writing a
// fixed set of files into the destination directory.
type fakeTransport struct {
	files       []string // relative paths created by Download
	downloadErr error
	removeErr   map[string]error // base name -> error

	mu         sync.Mutex
	downloads  []string
	executable []string
}

func (f *fakeTransport) Download(_ context.Context, url, destDir string, kind lsp.ArchiveKind) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	if f.downloadErr != nil {
		return f.downloadErr
	}
	if kind != lsp.ArchiveZip {
		return errors.New("unexpected archive kind")
	}
	for _, rel := range f.files {
		p := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTransport) MarkExecutable(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.mu.Lock()
	f.executable = append(f.executable, filepath.Base(path))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func (f *fakeTransport) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *fakeTransport) RemoveAll(path string) error {
	if err := f.removeErr[filepath.Base(path)]; err != nil {
		return err
	}
	return os.RemoveAll(path)
}

func (f *fakeTransport) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloads)
}

// recordingSink collects reported states.
type recordingSink struct {
	mu     sync.Mutex
	states []lsp.InstallationState
}

func (s *recordingSink) Report(_ context.Context, _ lsp.ServerID, st lsp.InstallationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st.State)
}

func (s *recordingSink) snapshot() []lsp.InstallationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]lsp.InstallationState(nil), s.states...)
}
