// Command lspkit provisions and configures language servers for editor hosts.
//
// Usage:
//
//	lspkit [serve]             run the HTTP API
//	lspkit resolve <server-id> print a runnable binary path, installing if needed
//	lspkit watch [server-id]   stream installation status events from NATS
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe()
	case "resolve":
		return runResolve(args)
	case "watch":
		return runWatch(args)
	case "help", "-h", "--help":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: lspkit <command> [arguments]

Commands:
  serve                 Run the HTTP API (default)
  resolve <server-id>   Print a runnable binary path, installing it if needed
  watch [server-id]     Stream installation status events from NATS

Configuration is read from lspkit.yaml (or $LSPKIT_CONFIG) and LSPKIT_* variables.`)
}
