package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/service"
)

func assertJSONEqual(t *testing.T, got []byte, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid expected JSON %q: %v", want, err)
	}
	gb, _ := json.Marshal(g)
	wb, _ := json.Marshal(w)
	if string(gb) != string(wb) {
		t.Errorf("got %s, want %s", gb, wb)
	}
}

func TestWorkspaceConfiguration(t *testing.T) {
	tests := []struct {
		name string
		wt   *fakeWorktree
		want string
	}{
		{
			name: "settings wrapped under key",
			wt:   &fakeWorktree{settings: json.RawMessage(`{"dialyzerEnabled":false,"mixEnv":"test"}`)},
			want: `{"elixirLS":{"dialyzerEnabled":false,"mixEnv":"test"}}`,
		},
		{
			name: "absent settings",
			wt:   &fakeWorktree{},
			want: `{"elixirLS":{}}`,
		},
		{
			name: "unreadable settings",
			wt:   &fakeWorktree{settingsErr: errors.New("permission denied")},
			want: `{"elixirLS":{}}`,
		},
		{
			name: "malformed settings",
			wt:   &fakeWorktree{settings: json.RawMessage(`{"dialyzerEnabled":`)},
			want: `{"elixirLS":{}}`,
		},
		{
			name: "non-object settings",
			wt:   &fakeWorktree{settings: json.RawMessage(`[1,2,3]`)},
			want: `{"elixirLS":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.WorkspaceConfiguration(context.Background(), lsp.ElixirLS, tt.wt)
			if err != nil {
				t.Fatalf("WorkspaceConfiguration: %v", err)
			}
			assertJSONEqual(t, got, tt.want)
		})
	}
}

func TestWorkspaceConfiguration_DottedKey(t *testing.T) {
	server := lsp.ElixirLS
	server.SettingsKey = "elixir.ls"

	got, err := service.WorkspaceConfiguration(context.Background(), server, &fakeWorktree{
		settings: json.RawMessage(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("WorkspaceConfiguration: %v", err)
	}
	assertJSONEqual(t, got, `{"elixir.ls":{"a":1}}`)
}

func TestInitializationOptions(t *testing.T) {
	ctx := context.Background()

	got, err := service.InitializationOptions(ctx, lsp.ElixirLS, &fakeWorktree{})
	if err != nil {
		t.Fatalf("InitializationOptions: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent options, got %s", got)
	}

	got, err = service.InitializationOptions(ctx, lsp.ElixirLS, &fakeWorktree{initOpts: json.RawMessage(`"nope"`)})
	if err != nil {
		t.Fatalf("InitializationOptions: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for non-object options, got %s", got)
	}

	got, err = service.InitializationOptions(ctx, lsp.ElixirLS, &fakeWorktree{initOpts: json.RawMessage(`{"projectDir":"apps/web"}`)})
	if err != nil {
		t.Fatalf("InitializationOptions: %v", err)
	}
	assertJSONEqual(t, got, `{"projectDir":"apps/web"}`)
}
