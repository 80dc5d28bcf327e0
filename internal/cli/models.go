// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/util"
)

// ModelData is one entry of the models --json payload.
type ModelData struct {
	model.ModelInfo
	Default bool `json:"default"`
}

// HandleModels lists the configured models. The default, or the --model
// override, is marked.
func HandleModels(args Args, env *Env) error {
	cfg := env.Config
	selected := cfg.Chat.DefaultModel
	if args.Model != "" {
		selected = args.Model
	}

	data := make([]ModelData, 0, len(cfg.Chat.Models))
	idWidth := 0
	for _, m := range cfg.Chat.Models {
		data = append(data, ModelData{ModelInfo: m, Default: m.ID == selected})
		idWidth = max(idWidth, util.Width(m.ID))
	}

	if args.JSON {
		return NewJSONResponse("models", data).Print(env.out())
	}
	for _, m := range data {
		marker := "  "
		if m.Default {
			marker = SuccessStyle.Render("*") + " "
		}
		fmt.Fprintf(env.out(), "%s%s  %s\n", marker, util.PadRight(m.ID, idWidth), m.Name)
	}
	return nil
}
