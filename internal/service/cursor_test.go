package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/model"
)

func TestParseCursor(t *testing.T) {
	t.Run("sentinel and empty mean from the beginning", func(t *testing.T) {
		for _, raw := range []string{"", "0"} {
			parsed, err := ParseCursor(raw)
			require.NoError(t, err)
			assert.True(t, parsed.IsZero())
		}
	})

	t.Run("round-trips through FormatCursor without precision loss", func(t *testing.T) {
		cursor := Cursor{
			At: time.Date(2026, 4, 2, 15, 30, 45, 123456789, time.UTC),
			ID: "0c7f3a0e-9a3b-4f6f-8a34-0f6a2e9b1c11",
		}

		parsed, err := ParseCursor(FormatCursor(cursor))
		require.NoError(t, err)
		assert.True(t, parsed.At.Equal(cursor.At))
		assert.Equal(t, cursor.ID, parsed.ID)
	})

	t.Run("a bare timestamp resumes with an empty tie-breaker", func(t *testing.T) {
		parsed, err := ParseCursor("2026-04-02T15:30:45Z")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.At.Year())
		assert.Empty(t, parsed.ID)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseCursor("1714000000")
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestFormatCursor(t *testing.T) {
	assert.Equal(t, "0", FormatCursor(Cursor{}))

	at := time.Date(2026, 4, 2, 15, 30, 45, 0, time.UTC)
	assert.Equal(t, "2026-04-02T15:30:45Z", FormatCursor(Cursor{At: at}))
	assert.Equal(t, "2026-04-02T15:30:45Z,abc", FormatCursor(Cursor{At: at, ID: "abc"}))
}
