// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattermon/chattermon/internal/game"
)

func TestValidateNickname(t *testing.T) {
	t.Run("empty nickname is allowed", func(t *testing.T) {
		require.NoError(t, game.ValidateNickname(""))
	})

	t.Run("normal nickname passes", func(t *testing.T) {
		require.NoError(t, game.ValidateNickname("Sparky"))
	})

	t.Run("multibyte nickname counts runes not bytes", func(t *testing.T) {
		require.NoError(t, game.ValidateNickname(strings.Repeat("ü", game.MaxNicknameLen)))
	})

	t.Run("too long rejected", func(t *testing.T) {
		err := game.ValidateNickname(strings.Repeat("a", game.MaxNicknameLen+1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maximum length")
	})

	t.Run("control characters rejected", func(t *testing.T) {
		require.Error(t, game.ValidateNickname("bad\nname"))
		require.Error(t, game.ValidateNickname("bad\x00name"))
	})

	t.Run("invalid UTF-8 rejected", func(t *testing.T) {
		require.Error(t, game.ValidateNickname(string([]byte{0xff, 0xfe})))
	})
}

func TestValidationError_Error(t *testing.T) {
	err := &game.ValidationError{Field: "level", Message: "out of range"}
	assert.Equal(t, "level: out of range", err.Error())
}
