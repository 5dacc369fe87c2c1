package objectclient

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/chatspace/internal/apperrors"
)

func TestMemoryClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	url, err := c.UploadFile(ctx, "bucket", "cs1/doc.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "memory://bucket/cs1/doc.pdf", url)

	r, err := c.GetObjectReader(ctx, "bucket", "cs1/doc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, c.DeleteFile(ctx, "bucket", "cs1/doc.pdf"))
	_, err = c.GetObjectReader(ctx, "bucket", "cs1/doc.pdf")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
