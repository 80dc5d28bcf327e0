// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"

	uichat "github.com/jeranaias/difychat/internal/ui/chat"
)

// HandleTUI runs the full-screen client until the user quits.
func HandleTUI(ctx context.Context, env *Env) error {
	if !IsStdoutTTY() {
		return errors.New("the TUI needs a terminal; use 'difychat chat' or 'difychat ask' instead")
	}
	opts := uichat.Options{}
	// Only an existing file can be watched for hot reload.
	if path, err := configFilePath(env); err == nil {
		if _, err := os.Stat(path); err == nil {
			opts.ConfigPath = path
		}
	}
	return uichat.Run(ctx, env.Runtime, opts)
}
