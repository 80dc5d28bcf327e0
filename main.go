// difychat - a terminal client for a Dify chat gateway.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/difychat/internal/app"
	"github.com/jeranaias/difychat/internal/cli"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(errorWriter(args), err, args.JSON)
		return cli.ExitCode(err)
	}

	// Help and version work even with a broken config.
	if cmd == cli.CmdHelp || cmd == cli.CmdVersion {
		return finish(cli.Run(context.Background(), cmd, args, &cli.Env{}), args)
	}

	cfg, path, err := loadConfig(args)
	if err != nil {
		cli.DisplayError(errorWriter(args), err, args.JSON)
		return 1
	}

	setupLogging(cfg, args)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	env := &cli.Env{Config: cfg, ConfigPath: path}
	if cmd.NeedsRuntime() {
		rt, err := app.New(cfg, app.Options{Model: args.Model})
		if err != nil {
			cli.DisplayError(errorWriter(args), err, args.JSON)
			return 1
		}
		// Close waits for background history writes.
		defer func() {
			if err := rt.Close(); err != nil {
				slog.Warn("shutdown incomplete", "error", err)
			}
		}()
		env.Runtime = rt
	}

	slog.Debug("command starting", "command", cmd.String(), "model", args.Model)
	return finish(cli.Run(ctx, cmd, args, env), args)
}

func finish(err error, args cli.Args) int {
	if err != nil {
		cli.DisplayError(errorWriter(args), err, args.JSON)
	}
	return cli.ExitCode(err)
}

// errorWriter is stdout in JSON mode so the envelope stays parseable.
func errorWriter(args cli.Args) io.Writer {
	if args.JSON {
		return os.Stdout
	}
	return os.Stderr
}

// loadConfig loads --config or the default file and applies the flag
// overrides. It returns the config file path for saving and hot reload.
func loadConfig(args cli.Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
		if p, perr := config.ConfigPathTOML(); perr == nil {
			path = p
		}
	}
	if err != nil {
		return nil, "", err
	}

	if args.Gateway != "" {
		cfg.Gateway.BaseURL = args.Gateway
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("invalid --gateway: %w", err)
		}
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// setupLogging installs the slog default. -v forces debug and -q
// forces errors only.
func setupLogging(cfg *config.Config, args cli.Args) {
	logCfg := cfg.Log
	switch {
	case args.Verbose:
		logCfg.Level = "debug"
	case args.Quiet:
		logCfg.Level = "error"
	}
	if err := logging.Setup(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		logging.Discard()
	}
}
