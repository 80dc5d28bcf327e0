// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea interface of difychat.

The model never owns conversation state. It renders the conversation
store's snapshot and re-reads it whenever the store publishes a
notification. Sends run through the session coordinator as tasks whose
event channels are drained by tea.Cmds.

# Key Types

  - Model: the Bubble Tea model (sidebar, viewport, textarea, status bar)
  - KeyMap: key bindings, also rendered by the help bubble
  - Options: startup settings such as the config file to watch

# Key Bindings

	enter         send            esc        stop sending
	ctrl+n        new             ctrl+r     rename
	ctrl+x        delete          tab        next conversation
	shift+tab     previous        ctrl+o     attach a file
	ctrl+t        next model      pgup/pgdn  scroll
	f1            help            ctrl+c     quit

# Usage

	rt, _ := app.New(cfg, app.Options{})
	defer rt.Close()
	err := chat.Run(ctx, rt, chat.Options{ConfigPath: path})
*/
package chat
