// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/difychat/internal/app"
	"github.com/jeranaias/difychat/internal/config"
)

// Options configures Run.
type Options struct {
	// ConfigPath is watched for changes. Empty disables hot reload.
	ConfigPath string
}

// Run starts the interface and blocks until the user quits or ctx ends.
// The caller owns rt and closes it afterwards.
func Run(ctx context.Context, rt *app.Runtime, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, rt)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, config.DefaultDebounce, func(cfg *config.Config, err error) {
			p.Send(configChangedMsg{cfg: cfg, err: err})
		})
		if err != nil {
			// RELIABILITY: hot reload is optional; the session still works.
			slog.Warn("config watcher unavailable", "path", opts.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
