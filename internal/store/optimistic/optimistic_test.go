// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package optimistic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_CommitSucceeds(t *testing.T) {
	name := "old"
	v := Capture(&name)

	err := Apply(
		func() { name = "new" },
		func() error { return nil },
		v.Restore,
	)

	assert.NoError(t, err)
	assert.Equal(t, "new", name)
}

func TestApply_CommitFailsRollsBack(t *testing.T) {
	list := []string{"a", "b"}
	v := Capture(&list)
	boom := errors.New("boom")

	err := Apply(
		func() { list = list[1:] },
		func() error { return boom },
		v.Restore,
	)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, list)
	assert.Equal(t, []string{"a", "b"}, v.Saved())
}

func TestApply_NilParts(t *testing.T) {
	assert.NoError(t, Apply(nil, nil, nil))
	assert.Error(t, Apply(nil, func() error { return errors.New("x") }, nil))
}
