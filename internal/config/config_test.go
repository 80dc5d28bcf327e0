// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	for _, k := range []string{"DIFYCHAT_GATEWAY_URL", "DIFYCHAT_USER", "DIFYCHAT_MODEL", "DIFYCHAT_SEND_SCOPE", "DIFYCHAT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:5004", cfg.Gateway.BaseURL)
	assert.Equal(t, "global", cfg.Chat.SendScope)
	require.Len(t, cfg.Chat.Models, 11)
	assert.Equal(t, "dify1", cfg.Chat.Models[0].ID)
	assert.Equal(t, "Dify 11", cfg.Chat.Models[10].Name)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Gateway, cfg.Gateway)
}

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[gateway]
base_url = "https://gw.example.com/"

[chat]
send_scope = "conversation"
default_model = "alpha"

[[chat.models]]
id = "alpha"
name = "Alpha"

[[chat.models]]
id = "beta"

[storage]
archive_enabled = false
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gw.example.com", cfg.Gateway.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "difychat-user", cfg.Gateway.User, "unset keys keep defaults")
	assert.Equal(t, "conversation", cfg.Chat.SendScope)
	require.Len(t, cfg.Chat.Models, 2, "file models replace the default list")
	assert.Equal(t, "beta", cfg.Chat.Models[1].Name, "name defaults to id")
	assert.False(t, cfg.Storage.ArchiveEnabled)
	assert.True(t, cfg.Storage.CacheEnabled)
}

func TestLoadFromPathErrors(t *testing.T) {
	dir := isolate(t)

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.toml")
		writeFile(t, path, "[gateway\n")
		_, err := LoadFromPath(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.toml")
		writeFile(t, path, `
[chat]
send_scope = "everywhere"

[log]
level = "loud"
`)
		_, err := LoadFromPath(path)
		require.Error(t, err)

		var verrs ValidateErrors
		require.True(t, errors.As(err, &verrs))
		fields := make([]string, 0, len(verrs))
		for _, v := range verrs {
			fields = append(fields, v.Field)
		}
		assert.ElementsMatch(t, []string{"chat.send_scope", "log.level"}, fields)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Gateway.BaseURL = "localhost:5004" }, "gateway.base_url"},
		{"empty user", func(c *Config) { c.Gateway.User = " " }, "gateway.user"},
		{"workers", func(c *Config) { c.Chat.PersistWorkers = 0 }, "chat.persist_workers"},
		{"unknown default model", func(c *Config) { c.Chat.DefaultModel = "nope" }, "chat.default_model"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"output", func(c *Config) { c.Log.Output = "syslog" }, "log.output"},
		{"duplicate model", func(c *Config) {
			c.Chat.Models = append(c.Chat.Models, c.Chat.Models[0])
		}, "chat.models[11].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DIFYCHAT_GATEWAY_URL", "http://gw:9000")
	t.Setenv("DIFYCHAT_MODEL", "dify3")
	t.Setenv("DIFYCHAT_SEND_SCOPE", "conversation")
	t.Setenv("DIFYCHAT_LOG_LEVEL", "debug")
	t.Setenv("DIFYCHAT_USER", "alice")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://gw:9000", cfg.Gateway.BaseURL)
	assert.Equal(t, "dify3", cfg.Chat.DefaultModel)
	assert.Equal(t, "conversation", cfg.Chat.SendScope)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "alice", cfg.Gateway.User)
}

func TestSaveAndReload(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Gateway.BaseURL = "http://saved:1234"
	cfg.UI.RenderMarkdown = false
	require.NoError(t, Save(cfg))

	path := filepath.Join(dir, "config.toml")
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://saved:1234", loaded.Gateway.BaseURL)
	assert.False(t, loaded.UI.RenderMarkdown)
	assert.Len(t, loaded.Chat.Models, 11)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("gateway.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5004", v)

	require.NoError(t, cfg.Set("gateway.timeout_secs", "45"))
	assert.Equal(t, 45, cfg.Gateway.TimeoutSecs)

	require.NoError(t, cfg.Set("gateway.requests_per_second", "2.5"))
	assert.InDelta(t, 2.5, cfg.Gateway.RequestsPerSecond, 0.001)

	require.NoError(t, cfg.Set("ui.render_markdown", "off"))
	assert.False(t, cfg.UI.RenderMarkdown)

	require.NoError(t, cfg.Set("chat.send_scope", "conversation"))
	assert.Equal(t, "conversation", cfg.Chat.SendScope)

	require.NoError(t, cfg.Set("log.add_source", true))
	assert.True(t, cfg.Log.AddSource)

	assert.Error(t, cfg.Set("gateway.nope", "x"))
	assert.Error(t, cfg.Set("gateway.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("ui.render_markdown", "maybe"))
	assert.Error(t, cfg.Set("chat.models", "x"), "slices are not settable")
	assert.Error(t, cfg.Set("gateway", "x"), "sections are not settable")
	assert.Error(t, cfg.Set("gateway.base_url.extra", "x"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestKeysAreGettable(t *testing.T) {
	cfg := Default()
	for _, k := range Keys() {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Chat.Models[0].Name = "changed"
	clone.Gateway.User = "other"

	assert.Equal(t, "Dify 1", cfg.Chat.Models[0].Name)
	assert.Equal(t, "difychat-user", cfg.Gateway.User)
}

func TestModelLookup(t *testing.T) {
	cfg := Default()
	m, ok := cfg.Model("dify4")
	require.True(t, ok)
	assert.Equal(t, "Dify 4", m.Name)

	_, ok = cfg.Model("gpt")
	assert.False(t, ok)
}

func TestResolvedPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.CachePath())
	assert.Equal(t, filepath.Join(dir, "archive.db"), cfg.ArchivePath())
	assert.Equal(t, filepath.Join(dir, "difychat.log"), cfg.LogPath())

	cfg.Storage.CachePath = "/tmp/elsewhere.db"
	assert.Equal(t, "/tmp/elsewhere.db", cfg.CachePath())
}

func TestStringIsJSON(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, `"base_url": "http://localhost:5004"`)
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestGlobalConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestGlobalReload(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	assert.Equal(t, "http://localhost:5004", Global().Gateway.BaseURL)

	writeFile(t, filepath.Join(dir, "config.toml"), "[gateway]\nbase_url = \"http://reloaded:1\"\n")
	require.NoError(t, ReloadGlobal())
	assert.Equal(t, "http://reloaded:1", Global().Gateway.BaseURL)
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[gateway]\nbase_url = \"http://first:1\"\n")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "[gateway]\nbase_url = \"http://second:2\"\n")

	// A truncate and a write can land in separate debounce windows.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Gateway.BaseURL == "http://second:2" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatcherIgnoresOtherFilesAndReportsErrors(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	errs := make(chan error, 4)
	oks := make(chan struct{}, 4)
	w, err := NewWatcher(path, 200*time.Millisecond, func(cfg *Config, err error) {
		if err != nil {
			errs <- err
			return
		}
		oks <- struct{}{}
	})
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, filepath.Join(dir, "other.txt"), "noise")
	writeFile(t, path, "[gateway\n")

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-oks:
		t.Fatal("malformed file reported as success")
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
