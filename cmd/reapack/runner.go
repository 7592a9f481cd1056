// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/joshuaword2alt/reapack"
	"github.com/joshuaword2alt/reapack/download"
	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/registry"
	"github.com/joshuaword2alt/reapack/transaction"
)

// managedDirs are the top-level directories under the installation
// root that packages install into; only files below them are
// considered during consistency checks.
var managedDirs = []string{"Scripts", "Effects", "UserPlugins", "Data", "ColorThemes"}

// Runner binds the CLI actions to their shared collaborators.
type Runner struct {
	logger *log.Logger
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "sync",
			Usage:     "Synchronize installed packages with their remotes",
			ArgsUsage: "[remote...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "install-new",
					Usage: "Also install packages not installed yet",
				},
			},
			Action: r.Sync,
		},
		{
			Name:      "uninstall",
			Usage:     "Remove every package installed from a remote",
			ArgsUsage: "<remote>",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "remote"},
			},
			Action: r.Uninstall,
		},
		{
			Name:   "list",
			Usage:  "List installed packages",
			Action: r.List,
		},
		{
			Name:   "check",
			Usage:  "Check installed files against the registry",
			Action: r.Check,
		},
		{
			Name:      "pin",
			Usage:     "Hold a package at its installed version",
			ArgsUsage: "<remote/category/package>",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "package"},
			},
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "unpin",
					Usage: "Release the hold instead",
				},
			},
			Action: r.Pin,
		},
		{
			Name:  "remote",
			Usage: "Manage the remote list",
			Commands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "Add a remote repository",
					ArgsUsage: "<name> <url>",
					Arguments: []cli.Argument{
						&cli.StringArg{Name: "name"},
						&cli.StringArg{Name: "url"},
					},
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:  "disabled",
							Usage: "Add the remote without enabling it",
						},
					},
					Action: r.RemoteAdd,
				},
				{
					Name:      "rm",
					Usage:     "Remove a remote from the configuration",
					ArgsUsage: "<name>",
					Arguments: []cli.Argument{
						&cli.StringArg{Name: "name"},
					},
					Action: r.RemoteRemove,
				},
				{
					Name:   "list",
					Usage:  "List configured remotes",
					Action: r.RemoteList,
				},
			},
		},
	}
}

// setup loads the configuration and resolves the installation root
// from flags, configuration and defaults, in that order.
func (r *Runner) setup(cmd *cli.Command) (*reapack.Config, string, error) {
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}

	cfg, err := reapack.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, "", err
	}

	root := cmd.String("root")
	if root == "" {
		root = cfg.General.Root
	}
	if root == "" {
		root, err = reapack.DefaultRoot()
		if err != nil {
			return nil, "", errors.Wrap(err, "cannot determine installation root")
		}
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

func (r *Runner) transport(cfg *reapack.Config, cmd *cli.Command) (*download.Transport, error) {
	proxy := cmd.String("proxy")
	if proxy == "" {
		proxy = cfg.General.Proxy
	}
	return download.NewTransport(download.TransportConfig{
		UserAgent:         reapack.UserAgent,
		Proxy:             proxy,
		VerifyPeer:        cfg.General.VerifyPeer && !cmd.Bool("no-verify"),
		RequestsPerSecond: cfg.General.RateLimit,
	})
}

func (r *Runner) concurrency(cfg *reapack.Config, cmd *cli.Command) int {
	if n := cmd.Int("concurrency"); n > 0 {
		return int(n)
	}
	return cfg.General.Concurrency
}

// Sync updates installed packages from their remotes. With arguments
// only the named remotes are synchronized, otherwise every enabled one.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	cfg, root, err := r.setup(cmd)
	if err != nil {
		return err
	}

	remotes := cfg.EnabledRemotes()
	if names := cmd.Args().Slice(); len(names) > 0 {
		remotes = remotes[:0]
		for _, name := range names {
			remote, ok := cfg.Remote(name)
			if !ok {
				return errors.Errorf("no remote named %s", name)
			}
			remotes = append(remotes, remote)
		}
	}
	if len(remotes) == 0 {
		r.logger.Warn("no remotes configured, nothing to do")
		return nil
	}

	transport, err := r.transport(cfg, cmd)
	if err != nil {
		return err
	}
	defer transport.Close()

	tx, err := transaction.New(transaction.Config{
		Root:        root,
		Fetcher:     transport,
		Concurrency: r.concurrency(cfg, cmd),
		Logger:      r.logger,
		OnPush: func(d *download.Download) {
			r.logger.Info("downloading", "name", d.Name())
		},
	})
	if err != nil {
		return err
	}

	for _, remote := range remotes {
		r.logger.Info("synchronizing", "remote", remote.Name)
		tx.Synchronize(remote, cmd.Bool("install-new"))
	}

	if err := tx.Run(ctx); err != nil {
		return err
	}
	for _, entry := range tx.Obsolete() {
		r.logger.Warn("installed package is gone from its index", "package", entry.FullName())
	}
	return r.report(tx.Receipt())
}

// Uninstall removes every package installed from the named remote.
func (r *Runner) Uninstall(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("remote")
	if name == "" {
		return errors.New("missing remote name")
	}

	cfg, root, err := r.setup(cmd)
	if err != nil {
		return err
	}

	transport, err := r.transport(cfg, cmd)
	if err != nil {
		return err
	}
	defer transport.Close()

	tx, err := transaction.New(transaction.Config{
		Root:    root,
		Fetcher: transport,
		Logger:  r.logger,
	})
	if err != nil {
		return err
	}

	tx.UninstallRemote(name)
	if err := tx.Run(ctx); err != nil {
		return err
	}
	return r.report(tx.Receipt())
}

// List prints every installed package with its version.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	_, root, err := r.setup(cmd)
	if err != nil {
		return err
	}

	reg, err := registry.Open(filepath.Join(root, "ReaPack"), r.logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	for _, entry := range reg.All() {
		line := fmt.Sprintf("%s v%s (%s)", entry.FullName(), entry.Version, entry.Type)
		if entry.Pinned {
			line += " [pinned]"
		}
		fmt.Println(line)
	}
	return nil
}

// Check compares the registry against the filesystem: files the
// registry owns but that are gone from disk, and files under the
// managed directories that no package owns.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	_, root, err := r.setup(cmd)
	if err != nil {
		return err
	}

	reg, err := registry.Open(filepath.Join(root, "ReaPack"), r.logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	problems := 0
	for _, entry := range reg.All() {
		for _, f := range entry.Files {
			if _, err := os.Stat(f.Under(root)); os.IsNotExist(err) {
				fmt.Printf("missing: %s (owned by %s)\n", f, entry.FullName())
				problems++
			}
		}
	}

	for _, dir := range managedDirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}

		err := godirwalk.Walk(base, &godirwalk.Options{
			Unsorted: true,
			Callback: func(osPathname string, de *godirwalk.Dirent) error {
				if !de.IsRegular() {
					return nil
				}
				rel, err := filepath.Rel(root, osPathname)
				if err != nil {
					return err
				}
				p, err := index.ParsePath(filepath.ToSlash(rel))
				if err != nil {
					return nil
				}
				if _, owned := reg.Owner(p); !owned {
					fmt.Printf("orphan: %s\n", p)
					problems++
				}
				return nil
			},
		})
		if err != nil {
			return errors.Wrapf(err, "cannot scan %s", base)
		}
	}

	if problems > 0 {
		return errors.Errorf("found %d inconsistencies", problems)
	}
	r.logger.Info("registry and filesystem are consistent")
	return nil
}

// Pin holds a package at its installed version, or releases the hold.
func (r *Runner) Pin(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("package")
	if key == "" {
		return errors.New("missing package name")
	}

	_, root, err := r.setup(cmd)
	if err != nil {
		return err
	}

	reg, err := registry.Open(filepath.Join(root, "ReaPack"), r.logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	for _, entry := range reg.All() {
		if !strings.EqualFold(entry.Key(), key) {
			continue
		}
		reg.SetPinned(entry, !cmd.Bool("unpin"))
		return reg.Commit()
	}
	return errors.Errorf("no installed package named %s", key)
}

// RemoteAdd registers a new remote in the configuration file.
func (r *Runner) RemoteAdd(ctx context.Context, cmd *cli.Command) error {
	remote := reapack.Remote{
		Name:    cmd.StringArg("name"),
		URL:     cmd.StringArg("url"),
		Enabled: !cmd.Bool("disabled"),
	}

	cfg, _, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.AddRemote(remote); err != nil {
		return err
	}
	if err := cfg.Write(cmd.String("config")); err != nil {
		return err
	}
	r.logger.Info("remote added", "name", remote.Name, "url", remote.URL)
	return nil
}

// RemoteRemove deletes a remote from the configuration file. Installed
// packages are left alone; use uninstall for those.
func (r *Runner) RemoteRemove(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")

	cfg, _, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RemoveRemote(name); err != nil {
		return err
	}
	if err := cfg.Write(cmd.String("config")); err != nil {
		return err
	}
	r.logger.Info("remote removed", "name", name)
	return nil
}

// RemoteList prints the configured remotes.
func (r *Runner) RemoteList(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := r.setup(cmd)
	if err != nil {
		return err
	}

	for _, remote := range cfg.Remotes {
		state := "enabled"
		if !remote.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s\t%s\t%s\n", remote.Name, remote.URL, state)
	}
	return nil
}

// report prints the receipt summary and fails when the transaction
// recorded any error.
func (r *Runner) report(receipt *transaction.Receipt) error {
	if receipt.Empty() {
		r.logger.Info("nothing to do")
		return nil
	}
	for _, line := range receipt.Summary() {
		fmt.Println(line)
	}
	if n := len(receipt.Errors()); n > 0 {
		return errors.Errorf("completed with %d errors", n)
	}
	return nil
}
