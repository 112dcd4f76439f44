package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/clock/system"
	"github.com/JakeFAU/wiki-citation-archive/internal/export"
	"github.com/JakeFAU/wiki-citation-archive/internal/failurelog"
	"github.com/JakeFAU/wiki-citation-archive/internal/keepawake"
	"github.com/JakeFAU/wiki-citation-archive/internal/metrics"
	"github.com/JakeFAU/wiki-citation-archive/internal/runner"
	"github.com/JakeFAU/wiki-citation-archive/internal/store"
	"github.com/JakeFAU/wiki-citation-archive/internal/wayback"
)

const metricsShutdownTimeout = 5 * time.Second

// Check runs the archive-status batch over the non-archive work list,
// resuming from whatever the output store already holds. The keep-awake lock
// and the output store are released on every exit path, including
// cancellation.
func (a *App) Check(ctx context.Context) (summary runner.Summary, err error) {
	cfg := a.cfg

	lock := keepawake.Disabled()
	if cfg.KeepAwake.Enabled {
		lock = keepawake.Acquire(ctx, a.logger.Named("keepawake"))
	}
	defer lock.Release()

	if cfg.Metrics.ListenAddr != "" {
		srv, err := metrics.Serve(cfg.Metrics.ListenAddr, a.logger.Named("metrics"))
		if err != nil {
			return summary, fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				a.logger.Warn("metrics server shutdown", zap.Error(serr))
			}
		}()
	}

	var items []citation.WorkItem
	if err := readFile(cfg.Paths.NonArchive, func(r io.Reader) error {
		var rerr error
		items, rerr = citation.ReadWorkItems(r)
		return rerr
	}); err != nil {
		return summary, fmt.Errorf("load work list: %w", err)
	}

	key, err := runner.KeyByName(cfg.Runner.ResumeKey)
	if err != nil {
		return summary, err
	}

	sink, err := store.Open(cfg.Paths.Output)
	if err != nil {
		return summary, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	done, err := store.LoadDone(cfg.Paths.Output, key, a.logger.Named("store"))
	if err != nil {
		return summary, err
	}
	previously := len(done)
	pending := runner.Plan(items, done, key)
	a.logger.Info("work planned",
		zap.Int("work_items", len(items)),
		zap.Int("already_done", previously),
		zap.Int("pending", len(pending)),
		zap.String("output", cfg.Paths.Output),
	)

	failures := failurelog.New(cfg.Paths.ErrorLog, system.NewLocal(), a.logger.Named("failurelog"))
	defer func() {
		if cerr := failures.Close(); cerr != nil {
			a.logger.Warn("close failure log", zap.Error(cerr))
		}
	}()

	client := wayback.NewClient(wayback.Config{
		Endpoint:    cfg.Wayback.Endpoint,
		EncodeQuery: cfg.Wayback.EncodeQuery,
		Retries:     cfg.Wayback.Retries,
		Backoff:     cfg.Wayback.Backoff(),
		Timeout:     cfg.Wayback.Timeout(),
		UserAgent:   cfg.Wayback.UserAgent,
	}, a.httpClient, a.pauser, failures, a.logger.Named("wayback"))
	checker := wayback.NewChecker(client, failures, a.logger.Named("checker"))

	r := runner.New(checker, sink, a.pauser, runner.Config{
		Delay:      cfg.Runner.Delay(),
		FlushEvery: cfg.Runner.FlushEvery,
	}, a.logger.Named("runner"))

	summary, err = r.Run(ctx, pending)
	if err != nil {
		a.logger.Warn("run stopped early",
			zap.Int("processed", summary.Processed),
			zap.Int("pending", summary.Pending),
			zap.Error(err),
		)
		return summary, err
	}
	if err := sink.Checkpoint(); err != nil {
		return summary, err
	}

	a.logger.Info("run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("found", summary.Found),
		zap.Int("not_found", summary.NotFound),
		zap.Int("fallbacks", summary.Fallbacks),
	)
	a.printf("Done. Results saved to %s\n", summary.Output)
	a.printf("Failures, if any, were logged to %s\n", failures.Path())

	if a.exporter.Enabled() {
		if _, xerr := a.exporter.Export(ctx, export.Run{
			ID:        a.runID,
			Output:    summary.Output,
			Processed: summary.Processed,
			Found:     summary.Found,
		}); xerr != nil {
			a.logger.Warn("export incomplete", zap.Error(xerr))
		}
	}
	return summary, nil
}
