// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// difychat.
//
// Every command runs against an Env: the assembled runtime, the loaded
// config and the output streams. Commands write human output to Stdout
// and notices to Stderr, or a single JSON envelope to Stdout with --json.
//
// # Key Types
//
//   - Command: the commands difychat understands
//   - Args: parsed global and command-specific flags
//   - ArgParser: flag and positional parsing shared by every command
//   - Env: what a command runs against
//   - JSONResponse: the --json envelope
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, false)
//	    os.Exit(1)
//	}
//	env := &cli.Env{Runtime: rt, Config: cfg, Stdout: os.Stdout, Stderr: os.Stderr}
//	if err := cli.Run(ctx, cmd, args, env); err != nil {
//	    ...
//	}
//
// # Commands
//
//   - tui: full-screen client (default)
//   - chat: line-mode REPL with slash commands
//   - ask: one-shot streamed answer
//   - conversations: list, show, new, rename, delete, export
//   - upload: upload a file into a conversation
//   - search: full-text search over the local archive
//   - models: configured models
//   - config: show, get, set, path, keys
//   - version, help
package cli
