// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/difychat/internal/util"
)

// ErrArchiveDisabled is returned by search when no archive is open.
var ErrArchiveDisabled = errors.New("message archive is disabled (set storage.archive_enabled = true)")

// HandleSearch runs a full-text search over the local archive.
func HandleSearch(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "search", func() (any, error) {
		a := env.Runtime.Archive
		if a == nil {
			return nil, ErrArchiveDisabled
		}
		hits, err := a.Search(ctx, args.Query, args.Limit)
		if err != nil {
			return nil, err
		}
		if args.JSON {
			return hits, nil
		}

		w := env.out()
		if len(hits) == 0 {
			writeLine(w, args.Quiet, DimStyle.Render("No matches"))
			return hits, nil
		}
		now := time.Now()
		for i, h := range hits {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s %s %s %s\n",
				TitleStyle.Render(h.ConversationID),
				DimStyle.Render(h.Model),
				h.Role.DisplayName(),
				DimStyle.Render(util.RelativeTime(h.CreatedAt, now)))
			fmt.Fprintln(w, "  "+util.FirstLine(h.Snippet))
		}
		return hits, nil
	})
}
