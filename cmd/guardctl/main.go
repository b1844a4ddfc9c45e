// Command guardctl is the operator CLI for loginguard: schema migrations,
// account bootstrap, the security policy and per-client lockout records.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sunvolt/loginguard/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	b := newDBBackend(cfg, logger)
	defer b.Close()

	root := newRootCmd(b)
	if err := root.Execute(); err != nil {
		b.Close()
		os.Exit(1)
	}
}
