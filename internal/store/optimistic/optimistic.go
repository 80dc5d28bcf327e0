// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package optimistic implements two-phase optimistic updates: apply a
// tentative local mutation, run the remote commit, undo on failure.
package optimistic

// Apply runs apply, then commit. If commit fails, rollback runs and the
// commit error is returned. apply and rollback may be nil.
//
// apply must capture whatever rollback needs before mutating; Apply
// itself keeps no copy of the state.
func Apply(apply func(), commit func() error, rollback func()) error {
	if apply != nil {
		apply()
	}
	if commit == nil {
		return nil
	}
	if err := commit(); err != nil {
		if rollback != nil {
			rollback()
		}
		return err
	}
	return nil
}

// Value is a snapshot-and-restore helper for a single variable.
type Value[T any] struct {
	target *T
	saved  T
}

// Capture records the current value of *target.
func Capture[T any](target *T) Value[T] {
	return Value[T]{target: target, saved: *target}
}

// Saved returns the captured value.
func (v Value[T]) Saved() T {
	return v.saved
}

// Restore writes the captured value back.
func (v Value[T]) Restore() {
	*v.target = v.saved
}
