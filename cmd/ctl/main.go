// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command ctl runs operator tasks against the FacultyEval stores: admin
// provisioning, verification cleanup, reconciliation and demo seeding.
//
// It reads the same environment as cmd/api. Logs go to stderr so that
// command output on stdout stays machine-readable.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taibuivan/facultyeval/internal/app"
	"github.com/taibuivan/facultyeval/internal/ctl"
	"github.com/taibuivan/facultyeval/internal/platform/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})).With(slog.String("app", "facultyeval-ctl"))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer application.Close()

	runner := ctl.NewRunner(application.Service, application.Accounts, application.Ledger, cfg.AllowedEmailDomains, os.Stdout, ctl.TerminalPassword(os.Stderr))
	if err := runner.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, ctl.ErrUsage) {
			return 2
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
