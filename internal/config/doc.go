// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for difychat.
//
// Configuration is TOML, with sensible defaults, environment variable
// overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - GatewayConfig: gateway URL, user and REST rate limits
//   - ChatConfig: model list, default model and send cancellation scope
//   - StorageConfig: local cache and transcript archive
//   - Watcher: fsnotify-based reload of the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DIFYCHAT_*)
//   - ~/.difychat/config.toml (or $DIFYCHAT_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := gateway.NewClient(gateway.Config{BaseURL: cfg.Gateway.BaseURL})
package config
