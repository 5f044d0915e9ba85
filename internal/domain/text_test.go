package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	t.Run("trims and composes", func(t *testing.T) {
		// "e" + combining acute becomes a single code point
		got, err := NormalizeText("display_name", "  Rene\u0301 ", true, 5)
		require.NoError(t, err)
		assert.Equal(t, "Ren\u00e9", got)
	})

	t.Run("required and empty", func(t *testing.T) {
		_, err := NormalizeText("name", "   ", true, 10)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("optional and empty", func(t *testing.T) {
		got, err := NormalizeText("pitch", "", false, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("counts code points not bytes", func(t *testing.T) {
		got, err := NormalizeText("name", strings.Repeat("ก", 80), true, MaxDisplayNameLength)
		require.NoError(t, err)
		assert.Len(t, []rune(got), 80)

		_, err = NormalizeText("name", strings.Repeat("ก", 81), true, MaxDisplayNameLength)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("newlines allowed in pitch", func(t *testing.T) {
		got, err := NormalizeText("pitch", "line one\nline two", false, MaxPitchLength)
		require.NoError(t, err)
		assert.Contains(t, got, "\n")
	})

	t.Run("control characters rejected", func(t *testing.T) {
		_, err := NormalizeText("name", "bad\x00name", true, 20)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
