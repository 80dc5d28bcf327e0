// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/difychat/internal/gateway"
)

// HandleUpload uploads one file into a conversation and prints its id.
func HandleUpload(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "upload", func() (any, error) {
		res, err := uploadOne(ctx, env, args.ConversationID, args.Path)
		if err != nil {
			return nil, err
		}
		if args.JSON {
			return res, nil
		}
		if res.IsBinary() {
			fmt.Fprintf(env.errOut(), "%s %s stored by the gateway as a binary file; it has no file id\n",
				WarningStyle.Render("[!]"), res.Name)
			return res, nil
		}
		if args.Quiet {
			fmt.Fprintln(env.out(), res.FileID)
			return res, nil
		}
		fmt.Fprintf(env.out(), "%s %s\n", RenderLabel("File ID"), res.FileID)
		fmt.Fprintf(env.out(), "%s %s\n", RenderLabel("Name"), res.Name)
		if res.Type != "" {
			fmt.Fprintf(env.out(), "%s %s\n", RenderLabel("Type"), res.Type)
		}
		return res, nil
	})
}

// uploadOne uploads path for the selected model.
func uploadOne(ctx context.Context, env *Env, convID, path string) (gateway.UploadResult, error) {
	rt := env.Runtime
	res, err := rt.Client.UploadFile(ctx, gateway.UploadRequest{
		Path:           expandHome(path),
		Model:          rt.Store.SelectedModel(),
		ConversationID: convID,
	})
	if err != nil {
		return res, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// uploadAll uploads paths and returns the ids usable in a send. Binary
// files have no id; they are reported and skipped.
func uploadAll(ctx context.Context, env *Env, args Args, convID string, paths []string) ([]string, error) {
	var ids []string
	for _, p := range paths {
		res, err := uploadOne(ctx, env, convID, p)
		if err != nil {
			return nil, err
		}
		if res.IsBinary() {
			if !args.Quiet {
				fmt.Fprintf(env.errOut(), "%s %s has no file id and is not attached\n", WarningStyle.Render("[!]"), res.Name)
			}
			continue
		}
		ids = append(ids, res.FileID)
	}
	return ids, nil
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
