package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wiki-citation-archive/internal/export"
	pubmemory "github.com/JakeFAU/wiki-citation-archive/internal/publisher/memory"
	"github.com/JakeFAU/wiki-citation-archive/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func writeStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikipedia_citations_with_archive_status.csv")
	require.NoError(t, os.WriteFile(path, []byte("citation_link\nhttps://a.example\n"), 0o600))
	return path
}

func TestExportUploadsAndPublishes(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := export.New(export.Options{
		Blobs:     blobs,
		Publisher: pub,
		Topic:     "citation-runs",
		Prefix:    "citations",
		Clock:     fixedClock{t: finished},
	})
	require.True(t, exp.Enabled())

	run := export.Run{ID: "run-1", Output: writeStore(t), Processed: 10, Found: 4}
	note, err := exp.Export(context.Background(), run)
	require.NoError(t, err)

	data, ok := blobs.Object("citations/run-1/wikipedia_citations_with_archive_status.csv")
	require.True(t, ok)
	assert.Equal(t, "citation_link\nhttps://a.example\n", string(data))

	want := export.Notification{
		RunID:      "run-1",
		Output:     run.Output,
		Processed:  10,
		Found:      4,
		ObjectURI:  "memory://citations/run-1/wikipedia_citations_with_archive_status.csv",
		SHA256:     "77ea02dbca263fe6a189c3829c74239dce9490bb82f88ab65e378d68d4179937",
		FinishedAt: finished,
	}
	assert.Equal(t, want, note)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "citation-runs", msgs[0].Topic)
	assert.Equal(t, want, msgs[0].Payload)
}

func TestExportPublishesWhenUploadFails(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	blobs.FailWith(errors.New("bucket gone"))
	pub := pubmemory.New()
	exp := export.New(export.Options{Blobs: blobs, Publisher: pub, Topic: "runs"})

	note, err := exp.Export(context.Background(), export.Run{ID: "r", Output: writeStore(t)})
	require.ErrorContains(t, err, "bucket gone")
	assert.Empty(t, note.ObjectURI)
	assert.Empty(t, note.SHA256)
	assert.Len(t, pub.Messages(), 1)
}

func TestExportJoinsErrors(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New()
	pub.FailWith(errors.New("topic missing"))
	exp := export.New(export.Options{Blobs: memory.NewBlobStore(), Publisher: pub, Topic: "runs"})

	_, err := exp.Export(context.Background(), export.Run{ID: "r", Output: filepath.Join(t.TempDir(), "absent.csv")})
	require.ErrorContains(t, err, "open output store for export")
	require.ErrorContains(t, err, "topic missing")
}

func TestExporterDisabled(t *testing.T) {
	t.Parallel()

	assert.False(t, export.New(export.Options{}).Enabled())
	assert.False(t, export.New(export.Options{Publisher: pubmemory.New()}).Enabled(), "publisher without topic")
}

func TestObjectPathWithoutPrefix(t *testing.T) {
	t.Parallel()

	exp := export.New(export.Options{})
	assert.Equal(t, "run-9/out.csv", exp.ObjectPath(export.Run{ID: "run-9", Output: "/data/out.csv"}))
}
