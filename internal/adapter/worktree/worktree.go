// Package worktree implements the worktree port for a project directory on
// the local filesystem.
package worktree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
)

// ProjectSettingsFile is the settings file looked up relative to the root.
const ProjectSettingsFile = ".lspkit/settings.json"

// Local is a worktree rooted at a directory.
type Local struct {
	root         string
	userSettings string
	pathEnv      string
}

// New creates a worktree rooted at root. userSettings names the user-level
// settings file consulted when the project has none; it may be empty.
// pathEnv overrides $PATH for binary lookup when non-empty.
func New(root, userSettings, pathEnv string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve worktree root: %w", err)
	}
	if pathEnv == "" {
		pathEnv = os.Getenv("PATH")
	}
	return &Local{root: abs, userSettings: userSettings, pathEnv: pathEnv}, nil
}

// Root returns the absolute worktree root.
func (w *Local) Root() string { return w.root }

// Which searches the configured PATH for an executable named name.
func (w *Local) Which(name string) (string, bool) {
	for _, dir := range filepath.SplitList(w.pathEnv) {
		if dir == "" {
			continue
		}
		for _, candidate := range executableNames(name) {
			p := filepath.Join(dir, candidate)
			if isExecutable(p) {
				return p, true
			}
		}
	}
	return "", false
}

func executableNames(name string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(name) != "" {
		return []string{name}
	}
	exts := strings.Split(strings.ToLower(os.Getenv("PATHEXT")), ";")
	if len(exts) == 1 && exts[0] == "" {
		exts = []string{".exe", ".bat", ".cmd"}
	}
	names := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext != "" {
			names = append(names, name+ext)
		}
	}
	return names
}

func isExecutable(p string) bool {
	st, err := os.Stat(p)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || st.Mode().Perm()&0o111 != 0
}

// SettingsFor returns lsp.<id>.settings from the project settings file, or
// from the user settings file when the project does not set it.
func (w *Local) SettingsFor(id lsp.ServerID) (json.RawMessage, error) {
	return w.lookup(id, "settings")
}

// InitializationOptionsFor returns lsp.<id>.initialization_options, resolved
// like SettingsFor.
func (w *Local) InitializationOptionsFor(id lsp.ServerID) (json.RawMessage, error) {
	return w.lookup(id, "initialization_options")
}

// lookup returns the first value found along the settings chain. An
// unreadable file is skipped; its error is returned only when no later file
// has the value.
func (w *Local) lookup(id lsp.ServerID, field string) (json.RawMessage, error) {
	path := "lsp." + gjson.Escape(string(id)) + "." + field
	var firstErr error
	for _, file := range w.settingsFiles() {
		raw, err := readPath(file, path)
		if err != nil {
			slog.Warn("skipping settings file", "server_id", id, "file", file, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if raw != nil {
			return raw, nil
		}
	}
	return nil, firstErr
}

func (w *Local) settingsFiles() []string {
	files := []string{filepath.Join(w.root, filepath.FromSlash(ProjectSettingsFile))}
	if w.userSettings != "" {
		files = append(files, w.userSettings)
	}
	return files
}

// readPath returns the raw JSON at path inside file, or nil when the file or
// the path is absent.
func readPath(file, path string) (json.RawMessage, error) {
	data, err := os.ReadFile(file) //nolint:gosec // G304: settings path is chosen by the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", lsp.ErrConfigurationUnavailable, file, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", lsp.ErrConfigurationUnavailable, file)
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, nil
	}
	return json.RawMessage(res.Raw), nil
}
