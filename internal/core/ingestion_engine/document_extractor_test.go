package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chatspace/internal/apperrors"
)

func TestDocconvExtractor_ExtractText(t *testing.T) {
	e := NewDocconvExtractor(false)
	ctx := context.Background()

	t.Run("markdown passes through", func(t *testing.T) {
		got, err := e.ExtractText(ctx, []byte("# Title\n\nBody text.\n"), "md")
		require.NoError(t, err)
		assert.Equal(t, "# Title\n\nBody text.", got)
	})

	t.Run("html becomes markdown", func(t *testing.T) {
		got, err := e.ExtractText(ctx, []byte("<html><body><h1>Pricing</h1><p>Plans start at <strong>$5</strong>.</p></body></html>"), ".HTML")
		require.NoError(t, err)
		assert.Contains(t, got, "# Pricing")
		assert.Contains(t, got, "**$5**")
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := e.ExtractText(ctx, []byte("x"), "exe")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("empty text is a parse error", func(t *testing.T) {
		_, err := e.ExtractText(ctx, []byte("   \n"), "txt")
		assert.ErrorIs(t, err, apperrors.ErrParse)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := e.ExtractText(ctx, []byte{0xff, 0xfe, 0xfd}, "txt")
		assert.ErrorIs(t, err, apperrors.ErrParse)
	})
}
