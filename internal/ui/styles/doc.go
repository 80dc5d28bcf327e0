// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the palette and lipgloss styles of the difychat TUI.

All colors are lipgloss.AdaptiveColor values, so one palette serves light
and dark terminals. The background is detected with termenv unless the
configured theme forces one.

# Key Types

  - Theme: every style the TUI renders with, plus terminal capabilities
  - Mode: auto, dark or light
  - SpinnerConfig: frames and rate of the sending spinner

# Usage

	mode, _ := styles.ParseMode(cfg.UI.Theme)
	theme := styles.NewTheme(mode)
	theme.SetSize(width, height)
	line := theme.StatusBar.Width(theme.Width).Render(text)
*/
package styles
