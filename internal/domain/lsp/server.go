package lsp

import (
	"fmt"
	"runtime"
)

// OS is the host operating system family as far as launcher scripts care.
type OS string

const (
	OSMac     OS = "mac"
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
)

// Platform identifies the host the server will run on.
type Platform struct {
	OS   OS
	Arch string
}

// CurrentPlatform derives the Platform from the running Go binary.
func CurrentPlatform() Platform {
	family := OSLinux
	switch runtime.GOOS {
	case "darwin":
		family = OSMac
	case "windows":
		family = OSWindows
	}
	return Platform{OS: family, Arch: runtime.GOARCH}
}

// ScriptExtension returns the launcher script extension for the platform:
// shell scripts on mac and linux, batch scripts on windows.
func (p Platform) ScriptExtension() string {
	if p.OS == OSWindows {
		return "bat"
	}
	return "sh"
}

// Server describes how a language server is found, downloaded, and configured.
type Server struct {
	ID ServerID

	// Repo is the release repository ("owner/name").
	Repo string

	// BinaryName is looked up on the worktree search path before anything else.
	BinaryName string

	// SettingsKey wraps worktree settings sent to the server at startup.
	SettingsKey string

	// Launcher is the main script's base name inside the version directory.
	Launcher string

	// AuxScripts are additional scripts shipped next to the launcher that
	// must be marked executable after extraction.
	AuxScripts []string

	Archive ArchiveKind
}

// AssetName is the release asset expected for version.
func (s Server) AssetName(version string) string {
	return fmt.Sprintf("%s-%s.%s", s.ID, version, s.Archive)
}

// VersionDir is the directory name that holds one installed version.
func (s Server) VersionDir(version string) string {
	return fmt.Sprintf("%s-%s", s.ID, version)
}

// ScriptPath returns the relative path of script within the version directory.
func (s Server) ScriptPath(version, script string, p Platform) string {
	return s.VersionDir(version) + "/" + script + "." + p.ScriptExtension()
}

// LauncherPath returns the relative path of the main launcher for version.
func (s Server) LauncherPath(version string, p Platform) string {
	return s.ScriptPath(version, s.Launcher, p)
}

// ElixirLS is the built-in definition for elixir-ls.
var ElixirLS = Server{
	ID:          "elixir-ls",
	Repo:        "elixir-lsp/elixir-ls",
	BinaryName:  "elixir-ls",
	SettingsKey: "elixirLS",
	Launcher:    "language_server",
	AuxScripts:  []string{"launch", "debug_adapter"},
	Archive:     ArchiveZip,
}

// Servers maps server IDs to their definitions.
var Servers = map[ServerID]Server{
	ElixirLS.ID: ElixirLS,
}

// Lookup returns the registered server for id.
func Lookup(id ServerID) (Server, error) {
	s, ok := Servers[id]
	if !ok {
		return Server{}, fmt.Errorf("%w: %s", ErrUnknownServer, id)
	}
	return s, nil
}
