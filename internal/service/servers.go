package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/worktree"
)

// ServerService is the host-facing entry point: one provisioner and one label
// service per registered language server.
type ServerService struct {
	provisioners map[lsp.ServerID]*Provisioner
	labels       map[lsp.ServerID]*LabelService
}

// NewServerService creates an empty service. Register servers before use.
func NewServerService() *ServerService {
	return &ServerService{
		provisioners: make(map[lsp.ServerID]*Provisioner),
		labels:       make(map[lsp.ServerID]*LabelService),
	}
}

// Register adds a provisioner and its label service. Either may be nil for
// servers that only need one of them.
func (s *ServerService) Register(id lsp.ServerID, p *Provisioner, labels *LabelService) {
	if p != nil {
		s.provisioners[id] = p
	}
	if labels != nil {
		s.labels[id] = labels
	}
}

// IDs returns the registered server IDs in sorted order.
func (s *ServerService) IDs() []lsp.ServerID {
	seen := make(map[lsp.ServerID]struct{}, len(s.provisioners))
	for id := range s.provisioners {
		seen[id] = struct{}{}
	}
	for id := range s.labels {
		seen[id] = struct{}{}
	}
	ids := make([]lsp.ServerID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Provisioner returns the provisioner registered for id.
func (s *ServerService) Provisioner(id lsp.ServerID) (*Provisioner, error) {
	p, ok := s.provisioners[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lsp.ErrUnknownServer, id)
	}
	return p, nil
}

// Labels returns the label service registered for id.
func (s *ServerService) Labels(id lsp.ServerID) (*LabelService, error) {
	l, ok := s.labels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lsp.ErrUnknownServer, id)
	}
	return l, nil
}

// Resolve returns the executable path for server id.
func (s *ServerService) Resolve(ctx context.Context, id lsp.ServerID, wt worktree.Worktree) (string, error) {
	p, err := s.Provisioner(id)
	if err != nil {
		return "", err
	}
	return p.Resolve(ctx, wt)
}

// Configuration bundles what a host sends to a server at startup.
type Configuration struct {
	Workspace             json.RawMessage `json:"workspace"`
	InitializationOptions json.RawMessage `json:"initialization_options,omitempty"`
}

// Configuration returns the workspace configuration and initialization
// options for server id.
func (s *ServerService) Configuration(ctx context.Context, id lsp.ServerID, wt worktree.Worktree) (*Configuration, error) {
	p, err := s.Provisioner(id)
	if err != nil {
		return nil, err
	}
	server := p.Server()

	ws, err := WorkspaceConfiguration(ctx, server, wt)
	if err != nil {
		return nil, fmt.Errorf("workspace configuration: %w", err)
	}
	initOpts, err := InitializationOptions(ctx, server, wt)
	if err != nil {
		return nil, fmt.Errorf("initialization options: %w", err)
	}
	return &Configuration{Workspace: ws, InitializationOptions: initOpts}, nil
}
