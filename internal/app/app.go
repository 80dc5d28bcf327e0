// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/difychat/internal/archive"
	"github.com/jeranaias/difychat/internal/cache"
	"github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/store"
	"github.com/jeranaias/difychat/internal/tasks"
)

// shutdownGrace bounds how long Close waits for cancelled sends to settle.
const shutdownGrace = 3 * time.Second

// Options adjusts runtime construction.
type Options struct {
	// HTTPClient replaces the gateway's REST client.
	HTTPClient *http.Client

	// Model overrides chat.default_model for this run.
	Model string

	// NoStorage skips the cache and archive even when enabled in config.
	NoStorage bool
}

// Runtime is the assembled client core.
type Runtime struct {
	Config  *config.Config
	Client  *gateway.Client
	Store   *store.Store
	Runner  *tasks.Runner
	Chat    *chat.Coordinator
	Cache   *cache.Cache     // nil when disabled or unavailable
	Archive *archive.Archive // nil when disabled or unavailable

	log       *slog.Logger
	closeOnce sync.Once
}

// New builds a runtime from cfg. A cache or archive that cannot be opened
// is logged and skipped; the client works without them.
func New(cfg *config.Config, opts Options) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	scope, err := chat.ParseScope(cfg.Chat.SendScope)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config: cfg,
		log:    slog.Default().With("component", "app"),
	}

	rt.Client = gateway.NewClient(gateway.Config{
		BaseURL:           cfg.Gateway.BaseURL,
		User:              cfg.Gateway.User,
		Timeout:           time.Duration(cfg.Gateway.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
		Burst:             cfg.Gateway.Burst,
		HTTPClient:        opts.HTTPClient,
	})

	if !opts.NoStorage {
		rt.openStorage()
	}

	selected := cfg.Chat.DefaultModel
	if opts.Model != "" {
		if _, ok := cfg.Model(opts.Model); !ok {
			rt.closeStorage()
			return nil, fmt.Errorf("%w: %s", store.ErrUnknownModel, opts.Model)
		}
		selected = opts.Model
	}

	storeOpts := store.Options{Models: cfg.Chat.Models, SelectedModel: selected}
	// A nil *cache.Cache must stay a nil interface.
	if rt.Cache != nil {
		storeOpts.Cache = rt.Cache
	}
	rt.Store = store.New(rt.Client, storeOpts)

	rt.Runner = tasks.NewRunner(tasks.Options{
		MaxConcurrent: cfg.Chat.PersistWorkers,
		Timeout:       time.Duration(cfg.Chat.PersistTimeoutSecs) * time.Second,
	})

	chatOpts := chat.Options{
		Store:            rt.Store,
		Gateway:          rt.Client,
		Runner:           rt.Runner,
		Scope:            scope,
		DefaultFileQuery: cfg.Chat.DefaultFileQuery,
	}
	if rt.Archive != nil {
		chatOpts.Archive = rt.Archive
	}
	rt.Chat = chat.New(chatOpts)

	return rt, nil
}

func (rt *Runtime) openStorage() {
	cfg := rt.Config
	if cfg.Storage.CacheEnabled {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			rt.log.Warn("offline cache unavailable", "path", cfg.CachePath(), "error", err)
		} else {
			rt.Cache = c
		}
	}
	if cfg.Storage.ArchiveEnabled {
		a, err := archive.Open(cfg.ArchivePath())
		if err != nil {
			rt.log.Warn("archive unavailable", "path", cfg.ArchivePath(), "error", err)
		} else {
			rt.Archive = a
		}
	}
}

// Start loads the selected model: its conversation list, then its newest
// conversation (or a new one).
func (rt *Runtime) Start(ctx context.Context) error {
	return rt.Store.SelectModel(ctx, rt.Store.SelectedModel())
}

// ApplyConfig takes the parts of a reloaded config that can change at
// runtime: the model list. The previous selection is kept when it still
// exists.
func (rt *Runtime) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	rt.Config = cfg
	rt.Store.SetModels(cfg.Chat.Models)
	rt.log.Info("configuration applied", "models", len(cfg.Chat.Models))
}

// Close stops live sends, waits for queued persistence, then closes the
// cache and archive.
func (rt *Runtime) Close() error {
	var errs []error
	rt.closeOnce.Do(func() {
		// Cancelled sends still queue their persistence before going idle.
		rt.Chat.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := rt.Chat.WaitIdle(ctx); err != nil {
			rt.log.Warn("sends still live at shutdown", "active", rt.Chat.Active())
		}
		cancel()
		rt.Runner.Stop()
		errs = append(errs, rt.closeStorage())
	})
	return errors.Join(errs...)
}

func (rt *Runtime) closeStorage() error {
	var errs []error
	if rt.Cache != nil {
		errs = append(errs, rt.Cache.Close())
	}
	if rt.Archive != nil {
		errs = append(errs, rt.Archive.Close())
	}
	return errors.Join(errs...)
}
