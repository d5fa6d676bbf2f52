package http

import (
	"net/http"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/worktree"
	"github.com/Strob0t/lspkit/internal/service"
)

const (
	smallBodyLimit = 64 << 10
	labelBodyLimit = 8 << 20
)

// WorktreeFunc opens the worktree for a request. An empty root selects the
// host's configured worktree.
type WorktreeFunc func(root string) (worktree.Worktree, error)

// Handlers holds the services the HTTP API exposes.
type Handlers struct {
	Servers  *service.ServerService
	Worktree WorktreeFunc
}

type serverInfo struct {
	ID         lsp.ServerID `json:"id"`
	Repo       string       `json:"repo,omitempty"`
	CachedPath string       `json:"cached_path,omitempty"`
}

// Health reports liveness and the registered servers.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"servers": h.Servers.IDs(),
	})
}

// ListServers returns every registered server with its cached binary, if any.
func (h *Handlers) ListServers(w http.ResponseWriter, _ *http.Request) {
	ids := h.Servers.IDs()
	out := make([]serverInfo, 0, len(ids))
	for _, id := range ids {
		info := serverInfo{ID: id}
		if p, err := h.Servers.Provisioner(id); err == nil {
			info.Repo = p.Server().Repo
			info.CachedPath, _ = p.CachedPath()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

type binaryRequest struct {
	Root string `json:"root"`
}

type binaryResponse struct {
	ServerID lsp.ServerID `json:"server_id"`
	Path     string       `json:"path"`
}

// ResolveBinary returns a runnable executable for the server, installing it
// when needed.
func (h *Handlers) ResolveBinary(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[binaryRequest](w, r, smallBodyLimit)
	if !ok {
		return
	}
	wt, ok := h.openWorktree(w, req.Root)
	if !ok {
		return
	}

	id := lsp.ServerID(urlParam(r, "id"))
	path, err := h.Servers.Resolve(r.Context(), id, wt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, binaryResponse{ServerID: id, Path: path})
}

// GetConfiguration returns the workspace configuration and initialization
// options for the server.
func (h *Handlers) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	wt, ok := h.openWorktree(w, r.URL.Query().Get("root"))
	if !ok {
		return
	}

	cfg, err := h.Servers.Configuration(r.Context(), lsp.ServerID(urlParam(r, "id")), wt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type completionLabelsRequest struct {
	Items []lsp.Completion `json:"items"`
}

type symbolLabelsRequest struct {
	Items []lsp.Symbol `json:"items"`
}

type labelsResponse struct {
	Labels []*lsp.CodeLabel `json:"labels"`
}

// LabelCompletions labels completion items in order; unlabeled items are null.
func (h *Handlers) LabelCompletions(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Servers.Labels(lsp.ServerID(urlParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, ok := readJSON[completionLabelsRequest](w, r, labelBodyLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, labelsResponse{Labels: labels.LabelCompletions(r.Context(), req.Items)})
}

// LabelSymbols labels symbols in order; unlabeled symbols are null.
func (h *Handlers) LabelSymbols(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Servers.Labels(lsp.ServerID(urlParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, ok := readJSON[symbolLabelsRequest](w, r, labelBodyLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, labelsResponse{Labels: labels.LabelSymbols(r.Context(), req.Items)})
}

func (h *Handlers) openWorktree(w http.ResponseWriter, root string) (worktree.Worktree, bool) {
	wt, err := h.Worktree(root)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid worktree root")
		return nil, false
	}
	return wt, true
}
