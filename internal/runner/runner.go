// Package runner drives archive lookups over a work list, appending each result
// to the output store with periodic durability checkpoints.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/metrics"
	"github.com/JakeFAU/wiki-citation-archive/internal/store"
)

const (
	defaultDelay      = 500 * time.Millisecond
	defaultFlushEvery = 100
)

// Checker resolves one work item. It returns an error only when the run must stop.
type Checker interface {
	Check(ctx context.Context, item citation.WorkItem) (citation.Result, error)
}

// Sink is the output store.
type Sink interface {
	Append(res citation.Result) error
	Checkpoint() error
	Path() string
}

// Pauser sleeps for a delay unless the context ends first.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// Config controls Runner behavior.
type Config struct {
	// Delay is the polite pause after every item.
	Delay time.Duration
	// FlushEvery is the number of items between checkpoints.
	FlushEvery int
}

// Summary reports what a run did.
type Summary struct {
	Pending     int
	Processed   int
	Found       int
	NotFound    int
	Fallbacks   int
	Checkpoints int
	Output      string
}

// Runner processes pending work items strictly one at a time.
type Runner struct {
	checker Checker
	sink    Sink
	pauser  Pauser
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Runner. A zero Delay disables the polite pause; a
// non-positive FlushEvery falls back to 100.
func New(checker Checker, sink Sink, pauser Pauser, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Delay < 0 {
		cfg.Delay = defaultDelay
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		checker: checker,
		sink:    sink,
		pauser:  pauser,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run resolves every pending item in order. Each result is appended before the
// next lookup starts; every FlushEvery items the store is synced to stable
// storage. Run stops early only on context cancellation or a store failure,
// returning the partial summary alongside the error.
func (r *Runner) Run(ctx context.Context, pending []citation.WorkItem) (Summary, error) {
	summary := Summary{Pending: len(pending), Output: r.sink.Path()}
	metrics.SetPending(len(pending))

	for i, item := range pending {
		res, err := r.checker.Check(ctx, item)
		if err != nil {
			return summary, fmt.Errorf("check item %d: %w", i+1, err)
		}
		if err := r.sink.Append(res); err != nil {
			return summary, fmt.Errorf("append item %d: %w", i+1, err)
		}
		summary.tally(res)
		metrics.ObserveProcessed(len(pending) - summary.Processed)
		r.logger.Info("citation checked",
			zap.Int("n", summary.Processed),
			zap.Int("of", len(pending)),
			zap.String("link", item.Link),
			zap.Bool("found", res.Found),
		)

		if summary.Processed%r.cfg.FlushEvery == 0 {
			if err := r.sink.Checkpoint(); err != nil {
				return summary, fmt.Errorf("checkpoint at item %d: %w", summary.Processed, err)
			}
			summary.Checkpoints++
			metrics.ObserveCheckpoint()
			r.logger.Info("progress saved",
				zap.Int("processed", summary.Processed),
				zap.Int("pending", len(pending)),
				zap.String("output", summary.Output),
			)
		}

		if r.pauser != nil && r.cfg.Delay > 0 {
			if err := r.pauser.Pause(ctx, r.cfg.Delay); err != nil {
				return summary, fmt.Errorf("polite delay: %w", err)
			}
		}
	}
	return summary, nil
}

func (s *Summary) tally(res citation.Result) {
	s.Processed++
	switch {
	case res.Found:
		s.Found++
	case res.Fallback:
		s.Fallbacks++
		s.NotFound++
	default:
		s.NotFound++
	}
}

// Plan filters items down to those whose key is not in done, in input order.
// Keys repeated within items are kept once, so a run never appends two rows
// for the same key. done is extended with every planned key.
func Plan(items []citation.WorkItem, done store.DoneSet, key store.KeyFunc) []citation.WorkItem {
	pending := make([]citation.WorkItem, 0, len(items))
	for _, item := range items {
		k := key(item)
		if done.Has(k) {
			continue
		}
		done.Add(k)
		pending = append(pending, item)
	}
	return pending
}
