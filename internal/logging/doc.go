// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide slog logger.
//
// Core packages log through slog.Default() with a "component" attribute.
// Setup decides where those records go: the TUI owns the terminal, so it
// logs to a file; one-shot commands log to stderr.
//
// # Usage
//
//	if err := logging.Setup(cfg.Log); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	log := logging.Component("gateway")
package logging
