// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeys(t *testing.T) {
	t.Parallel()
	t.Run("deterministic", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h1, b1, err := DeriveKeys("app-secret")
		require.NoError(err)
		h2, b2, err := DeriveKeys("app-secret")
		require.NoError(err)
		assert.Len(h1, HashKeySize)
		assert.Len(b1, BlockKeySize)
		assert.Equal(h1, h2)
		assert.Equal(b1, b2)
		assert.NotEqual(h1[:BlockKeySize], b1)
	})
	t.Run("different-secrets", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h1, _, err := DeriveKeys("app-secret")
		require.NoError(err)
		h2, _, err := DeriveKeys("other-secret")
		require.NoError(err)
		assert.NotEqual(h1, h2)
	})
	t.Run("empty-secret", func(t *testing.T) {
		_, _, err := DeriveKeys("")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	a, err := DeriveKey("app-secret", "login hash", 32)
	require.NoError(err)
	b, err := DeriveKey("app-secret", "session hash", 32)
	require.NoError(err)
	assert.NotEqual(a, b)

	_, err = DeriveKey("app-secret", "", 32)
	assert.ErrorIs(err, ErrInvalidParameter)
	_, err = DeriveKey("app-secret", "login hash", 0)
	assert.ErrorIs(err, ErrInvalidParameter)
}
