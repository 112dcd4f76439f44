package gcs

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client is required")

	_, err = New(&storage.Client{}, Config{Bucket: "  "})
	require.ErrorContains(t, err, "bucket name is required")

	store, err := New(&storage.Client{}, Config{Bucket: "citations"})
	require.NoError(t, err)
	assert.Equal(t, "citations", store.bucket)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "citations"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "text/csv", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")
}
