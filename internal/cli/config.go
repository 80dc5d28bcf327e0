// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - configuration management command.
//
// Command: config
//
// Examples:
//
//	difychat config                              Show the effective config
//	difychat config get gateway.base_url         Print one value
//	difychat config set chat.send_scope global   Change and save a value
//	difychat config path                         Print the config file path
//	difychat config keys                         List settable keys
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/difychat/internal/config"
)

// ConfigValue is the --json payload of config get and set.
type ConfigValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Path  string `json:"path,omitempty"`
}

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args, env *Env) error {
	switch args.Subcommand {
	case "show":
		return configShow(args, env)
	case "get":
		return configGet(args, env)
	case "set":
		return configSet(args, env)
	case "path":
		return configPath(args, env)
	case "keys":
		return configKeys(args, env)
	default:
		return &UsageError{
			Message: fmt.Sprintf("unknown config subcommand %q", args.Subcommand),
			Usage:   "difychat config [show|get KEY|set KEY VALUE|path|keys]",
		}
	}
}

// configFilePath is --config, or the default path.
func configFilePath(env *Env) (string, error) {
	if env.ConfigPath != "" {
		return env.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func configShow(args Args, env *Env) error {
	if args.JSON {
		return NewJSONResponse("config", env.Config).Print(env.out())
	}
	if err := toml.NewEncoder(env.out()).Encode(env.Config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func configGet(args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "config", func() (any, error) {
		if args.ConfigKey == "" {
			return nil, &UsageError{Message: "missing key", Usage: "difychat config get KEY"}
		}
		v, err := env.Config.Get(args.ConfigKey)
		if err != nil {
			return nil, &NotFoundError{Resource: "config key", ID: args.ConfigKey}
		}
		if !args.JSON {
			fmt.Fprintln(env.out(), formatConfigValue(v))
		}
		return ConfigValue{Key: args.ConfigKey, Value: v}, nil
	})
}

// configSet changes one key in the file. The file is read without
// environment or flag overrides so they are never written back.
func configSet(args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "config", func() (any, error) {
		if args.ConfigKey == "" || args.ConfigValue == "" {
			return nil, &UsageError{Message: "missing key or value", Usage: "difychat config set KEY VALUE"}
		}
		path, err := configFilePath(env)
		if err != nil {
			return nil, err
		}

		cfg := config.Default()
		if _, statErr := os.Stat(path); statErr == nil {
			if err := config.LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, statErr
		}

		if err := cfg.Set(args.ConfigKey, args.ConfigValue); err != nil {
			return nil, err
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return nil, err
		}

		v, _ := cfg.Get(args.ConfigKey)
		writeLine(env.out(), args.Quiet || args.JSON,
			fmt.Sprintf("%s %s = %s", SuccessStyle.Render("[OK]"), args.ConfigKey, formatConfigValue(v)))
		return ConfigValue{Key: args.ConfigKey, Value: v, Path: path}, nil
	})
}

func configPath(args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "config", func() (any, error) {
		path, err := configFilePath(env)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			fmt.Fprintln(env.out(), path)
		}
		return map[string]string{"path": path}, nil
	})
}

func configKeys(args Args, env *Env) error {
	keys := config.Keys()
	if args.JSON {
		return NewJSONResponse("config", keys).Print(env.out())
	}
	fmt.Fprintln(env.out(), strings.Join(keys, "\n"))
	return nil
}

func formatConfigValue(v any) string {
	if s, ok := v.(string); ok && s == "" {
		return `""`
	}
	return fmt.Sprint(v)
}
