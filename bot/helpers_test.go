package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		parts := splitMessage("hello", 10)
		assert.Equal(t, []string{"hello"}, parts)
	})

	t.Run("splits at newlines", func(t *testing.T) {
		text := "line one\nline two\nline three\n"
		parts := splitMessage(text, 12)
		require.Greater(t, len(parts), 1)
		assert.Equal(t, text, strings.Join(parts, ""))
		for _, part := range parts[:len(parts)-1] {
			assert.True(t, strings.HasSuffix(part, "\n"))
		}
	})

	t.Run("never cuts inside a multi-byte rune", func(t *testing.T) {
		// Cyrillic names are two bytes per rune, so an odd byte budget
		// lands mid-rune without the boundary backoff.
		text := strings.Repeat("Фёдор Михайлович Достоевский ", 40)
		parts := splitMessage(text, 101)
		require.Greater(t, len(parts), 1)
		assert.Equal(t, text, strings.Join(parts, ""))
		for i, part := range parts {
			assert.True(t, utf8.ValidString(part), "part %d is invalid utf-8", i)
			assert.LessOrEqual(t, len(part), 101)
		}
	})
}
