// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command reapack is a command line client for ReaPack package
// repositories: it synchronizes installed packages against their
// remotes, installs and removes packages, and manages the remote list.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/joshuaword2alt/reapack"
)

func main() {
	logger := log.New(os.Stderr)

	runner := &Runner{logger: logger}

	app := &cli.Command{
		Name:    "reapack",
		Usage:   "Synchronize and manage ReaPack packages",
		Version: reapack.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Installation root (overrides the configuration)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum parallel downloads",
			},
			&cli.StringFlag{
				Name:  "proxy",
				Usage: "Proxy URL (overrides the environment)",
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "Skip TLS certificate verification",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatal(err)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "reapack.toml"
	}
	return filepath.Join(dir, "reapack", "reapack.toml")
}
