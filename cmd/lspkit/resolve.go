package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cfnats "github.com/Strob0t/lspkit/internal/adapter/nats"
	"github.com/Strob0t/lspkit/internal/config"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/logger"
	"github.com/Strob0t/lspkit/internal/port/status"
)

// cliSetup loads configuration and routes logs to stderr so stdout carries
// only command output.
func cliSetup() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closeLog := logger.NewWithWriter(cfg.Logging, os.Stderr)
	slog.SetDefault(log)
	return cfg, closeLog.Close, nil
}

// runResolve prints the executable path for one server.
func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	root := fs.String("root", "", "worktree root (default: configured worktree.root)")
	withConfig := fs.Bool("config", false, "also print the workspace configuration as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lspkit resolve [-root dir] [-config] <server-id>")
	}
	id := lsp.ServerID(fs.Arg(0))

	cfg, closeLog, err := cliSetup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a, err := buildApp(ctx, cfg, status.Log{}, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	wt, err := worktreeOpener(cfg.Worktree)(*root)
	if err != nil {
		return err
	}

	path, err := a.servers.Resolve(ctx, id, wt)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", id, err)
	}
	fmt.Println(path)

	if *withConfig {
		conf, err := a.servers.Configuration(ctx, id, wt)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(conf)
	}
	return nil
}

// runWatch prints status events published on NATS as JSON lines.
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	subject := cfnats.AllStatus
	if fs.NArg() == 1 {
		subject = cfnats.Subject(lsp.ServerID(fs.Arg(0)))
	}

	cfg, closeLog, err := cliSetup()
	if err != nil {
		return err
	}
	defer closeLog()
	if cfg.NATS.URL == "" {
		return errors.New("watch requires nats.url (or NATS_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := cfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = pub.Close() }()

	enc := json.NewEncoder(os.Stdout)
	unsubscribe, err := pub.Subscribe(ctx, subject, func(_ context.Context, ev status.Event) error {
		return enc.Encode(ev)
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
