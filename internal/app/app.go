// Package app holds the long-lived services shared by citearchive commands
// and implements each pipeline stage on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/clock/system"
	"github.com/JakeFAU/wiki-citation-archive/internal/config"
	"github.com/JakeFAU/wiki-citation-archive/internal/export"
	"github.com/JakeFAU/wiki-citation-archive/internal/id/uuid"
	"github.com/JakeFAU/wiki-citation-archive/internal/logging"
	pubsubpublisher "github.com/JakeFAU/wiki-citation-archive/internal/publisher/pubsub"
	"github.com/JakeFAU/wiki-citation-archive/internal/runner"
	"github.com/JakeFAU/wiki-citation-archive/internal/storage/gcs"
	"github.com/JakeFAU/wiki-citation-archive/internal/storage/local"
	"github.com/JakeFAU/wiki-citation-archive/internal/wayback"
)

// Options overrides the services New would otherwise build from config.
type Options struct {
	Logger     *zap.Logger
	Out        io.Writer
	HTTPClient *http.Client
	Pauser     runner.Pauser
	Blobs      export.BlobStore
	Publisher  export.Publisher
	RunID      string
}

// App is the dependency container for one command invocation.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	out        io.Writer
	runID      string
	httpClient *http.Client
	pauser     runner.Pauser
	exporter   *export.Exporter
	closers    []func() error
}

// New initializes every service the configuration asks for. Export targets
// are dialed eagerly so a bad bucket or project fails before a long run.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{
		cfg:        cfg,
		out:        opts.Out,
		runID:      opts.RunID,
		httpClient: opts.HTTPClient,
		pauser:     opts.Pauser,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.runID == "" {
		a.runID = uuid.New().MustRunID()
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{}
	}
	if a.pauser == nil {
		a.pauser = wayback.TimerPauser{}
	}

	a.logger = opts.Logger
	if a.logger == nil {
		logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, RunID: a.runID})
		if err != nil {
			return nil, err
		}
		a.logger = logger
		a.closers = append(a.closers, func() error {
			// Syncing stderr fails on some terminals; nothing useful to report.
			_ = logger.Sync()
			return nil
		})
	} else {
		a.logger = a.logger.With(zap.String("run_id", a.runID))
	}

	blobs, err := a.blobStore(ctx, opts.Blobs)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.publisher(ctx, opts.Publisher)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.exporter = export.New(export.Options{
		Blobs:     blobs,
		Publisher: publisher,
		Topic:     cfg.PubSub.TopicName,
		Prefix:    cfg.Storage.Prefix,
		Clock:     system.New(),
		Logger:    a.logger.Named("export"),
	})
	return a, nil
}

func (a *App) blobStore(ctx context.Context, override export.BlobStore) (export.BlobStore, error) {
	if override != nil {
		return override, nil
	}
	switch {
	case a.cfg.Storage.GCSBucket != "":
		a.logger.Info("exporting to GCS", zap.String("bucket", a.cfg.Storage.GCSBucket))
		store, client, err := gcs.Dial(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize GCS export: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return store, nil
	case a.cfg.Storage.LocalDir != "":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local export: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func (a *App) publisher(ctx context.Context, override export.Publisher) (export.Publisher, error) {
	if override != nil {
		return override, nil
	}
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	a.logger.Info("publishing run notifications", zap.String("topic", a.cfg.PubSub.TopicName))
	pub, client, err := pubsubpublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return pub, nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// RunID identifies this invocation in logs and exports.
func (a *App) RunID() string {
	return a.runID
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
}

func (a *App) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(a.out, format, args...); err != nil {
		a.logger.Debug("write command output", zap.Error(err))
	}
}
