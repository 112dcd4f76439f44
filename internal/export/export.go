// Package export ships a finished output store to object storage and
// announces the run on a message topic.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/hash/sha256"
)

// ContentTypeCSV is attached to uploaded stores.
const ContentTypeCSV = "text/csv"

// BlobStore writes an object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock stamps notifications.
type Clock interface {
	Now() time.Time
}

// Run describes a completed batch.
type Run struct {
	ID        string
	Output    string
	Processed int
	Found     int
}

// Notification is the JSON payload published after a run.
type Notification struct {
	RunID      string    `json:"run_id"`
	Output     string    `json:"output"`
	Processed  int       `json:"processed"`
	Found      int       `json:"found"`
	ObjectURI  string    `json:"object_uri,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Exporter uploads and announces runs. Either side may be nil to disable it.
type Exporter struct {
	blobs     BlobStore
	publisher Publisher
	topic     string
	prefix    string
	clock     Clock
	logger    *zap.Logger
}

// Options configures an Exporter.
type Options struct {
	Blobs     BlobStore
	Publisher Publisher
	Topic     string
	Prefix    string
	Clock     Clock
	Logger    *zap.Logger
}

// New builds an Exporter.
func New(opts Options) *Exporter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Exporter{
		blobs:     opts.Blobs,
		publisher: opts.Publisher,
		topic:     opts.Topic,
		prefix:    opts.Prefix,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
}

// Enabled reports whether the exporter has anything to do.
func (e *Exporter) Enabled() bool {
	return e.blobs != nil || (e.publisher != nil && e.topic != "")
}

// ObjectPath returns the object key for a run: prefix/<run_id>/<basename>.
func (e *Exporter) ObjectPath(run Run) string {
	return path.Join(e.prefix, run.ID, filepath.Base(run.Output))
}

// Export uploads the output store and then publishes the notification. A
// failed upload still publishes, without an object URI. The returned error
// joins every failure.
func (e *Exporter) Export(ctx context.Context, run Run) (Notification, error) {
	note := Notification{
		RunID:     run.ID,
		Output:    run.Output,
		Processed: run.Processed,
		Found:     run.Found,
	}
	var errs []error

	if e.blobs != nil {
		uri, sum, err := e.upload(ctx, run)
		if err != nil {
			errs = append(errs, err)
		} else {
			note.ObjectURI = uri
			note.SHA256 = sum
			e.logger.Info("output store exported", zap.String("uri", uri), zap.String("sha256", sum))
		}
	}

	if e.publisher != nil && e.topic != "" {
		if e.clock != nil {
			note.FinishedAt = e.clock.Now()
		} else {
			note.FinishedAt = time.Now().UTC()
		}
		id, err := e.publisher.Publish(ctx, e.topic, note)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run %s: %w", run.ID, err))
		} else {
			e.logger.Info("run notification published", zap.String("topic", e.topic), zap.String("message_id", id))
		}
	}
	return note, errors.Join(errs...)
}

func (e *Exporter) upload(ctx context.Context, run Run) (string, string, error) {
	f, err := os.Open(run.Output) // #nosec G304 -- operator-chosen output path.
	if err != nil {
		return "", "", fmt.Errorf("open output store for export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Debug("close exported store", zap.Error(cerr))
		}
	}()

	digest := sha256.New()
	uri, err := e.blobs.PutObject(ctx, e.ObjectPath(run), ContentTypeCSV, io.TeeReader(f, digest))
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", run.Output, err)
	}
	return uri, digest.Sum(), nil
}
