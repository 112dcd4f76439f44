package wayback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/failurelog"
	"github.com/JakeFAU/wiki-citation-archive/internal/metrics"
)

// Looker performs a single availability lookup.
type Looker interface {
	Lookup(ctx context.Context, link string) (Response, error)
}

// Checker resolves work items into results, degrading a single item rather
// than failing the batch.
type Checker struct {
	looker   Looker
	failures failurelog.Recorder
	logger   *zap.Logger
}

// NewChecker wires a Looker to the failure log.
func NewChecker(looker Looker, failures failurelog.Recorder, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{looker: looker, failures: failures, logger: logger}
}

// Check resolves item. The only error returned is context cancellation; every
// other failure is logged and folded into the result:
//   - retries exhausted: fallback record with null domain
//   - non-200 status, malformed body or unbuildable request: not-found record
//     with the domain intact
func (c *Checker) Check(ctx context.Context, item citation.WorkItem) (citation.Result, error) {
	resp, err := c.looker.Lookup(ctx, item.Link)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return citation.Result{}, fmt.Errorf("check %s: %w", item.Link, ctxErr)
		}
		if errors.Is(err, ErrRetriesExhausted) {
			metrics.ObserveLookup(metrics.OutcomeFallback)
			return citation.Fallback(item), nil
		}
		c.record(item, metrics.OutcomeInvalid, err.Error())
		return citation.NewResult(item), nil
	}

	if err := CheckStatus(resp, item.Link); err != nil {
		c.record(item, metrics.OutcomeHTTPError, err.Error())
		return citation.NewResult(item), nil
	}

	res, err := MapResponse(item, resp.Body)
	if err != nil {
		c.record(item, metrics.OutcomeMalformed, err.Error())
		return citation.NewResult(item), nil
	}

	if res.Found {
		metrics.ObserveLookup(metrics.OutcomeFound)
	} else {
		metrics.ObserveLookup(metrics.OutcomeNotFound)
	}
	return res, nil
}

func (c *Checker) record(item citation.WorkItem, outcome, msg string) {
	metrics.ObserveLookup(outcome)
	c.logger.Warn("availability lookup degraded",
		zap.String("link", item.Link),
		zap.String("outcome", outcome),
		zap.String("detail", msg),
	)
	if c.failures != nil {
		c.failures.Log(msg)
	}
}
