// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// RequireConfirmation asks before a destructive action. --confirm skips
// the prompt. JSON mode and a non-terminal stdin cannot prompt, so they
// need --confirm.
//
//	ok, err := RequireConfirmation(env, args.Confirm, "delete conversation abc", args.JSON)
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    return ErrCancelled
//	}
func RequireConfirmation(env *Env, confirmFlag bool, action string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if jsonMode {
		return false, errors.New("confirmation required: use --confirm in JSON mode")
	}
	if env.Stdin == nil && !IsTTY() {
		return false, errors.New("confirmation required but stdin is not a terminal; use --confirm")
	}
	return PromptYesNo(env, fmt.Sprintf("Are you sure you want to %s?", action)), nil
}

// PromptYesNo asks a y/N question on env's streams. Anything but y or
// yes is no.
func PromptYesNo(env *Env, question string) bool {
	fmt.Fprintf(env.errOut(), "%s [y/N]: ", question)

	line, err := bufio.NewReader(env.in()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return isYes(line)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
