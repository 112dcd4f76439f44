// Package wayback queries the Wayback Machine availability API for citation
// links and maps its answers onto citation results.
package wayback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/failurelog"
	"github.com/JakeFAU/wiki-citation-archive/internal/metrics"
)

// DefaultEndpoint is the availability API queried when none is configured.
const DefaultEndpoint = "http://archive.org/wayback/available"

const (
	defaultRetries = 3
	defaultBackoff = 5 * time.Second
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var (
	// ErrRetriesExhausted is returned once every attempt failed at the network level.
	ErrRetriesExhausted = errors.New("availability lookup retries exhausted")
	// ErrInvalidRequest is returned when no request can be built for a link.
	ErrInvalidRequest = errors.New("invalid availability request")
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pauser sleeps for a delay unless the context ends first.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// Config controls Client behavior.
type Config struct {
	// Endpoint is the availability API URL without a query string.
	Endpoint string
	// EncodeQuery percent-encodes the link into the url parameter. When false
	// the link is appended verbatim after "?url=".
	EncodeQuery bool
	// Retries is the total number of attempts per link.
	Retries int
	// Backoff is the base delay; attempt i waits Backoff * 2^i before retrying.
	Backoff time.Duration
	// Timeout bounds each individual attempt.
	Timeout   time.Duration
	UserAgent string
}

// Response is a raw availability API answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues availability lookups with bounded retry and exponential backoff.
type Client struct {
	doer     Doer
	cfg      Config
	pauser   Pauser
	failures failurelog.Recorder
	logger   *zap.Logger
}

// NewClient builds a Client, filling unset Config fields with defaults.
func NewClient(cfg Config, doer Doer, pauser Pauser, failures failurelog.Recorder, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if doer == nil {
		doer = &http.Client{}
	}
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		doer:     doer,
		cfg:      cfg,
		pauser:   pauser,
		failures: failures,
		logger:   logger,
	}
}

// RequestURL builds the availability API URL for link.
func (c *Client) RequestURL(link string) string {
	if c.cfg.EncodeQuery {
		return c.cfg.Endpoint + "?" + url.Values{"url": {link}}.Encode()
	}
	return c.cfg.Endpoint + "?url=" + link
}

// BackoffDelay returns the wait after the zero-indexed attempt failed.
func (c *Client) BackoffDelay(attempt int) time.Duration {
	return time.Duration(float64(c.cfg.Backoff) * math.Pow(2, float64(attempt)))
}

// Lookup queries the availability API for link. Network-level failures,
// including per-attempt timeouts, are retried; any HTTP response that arrives
// is returned as is. After the final failed attempt a single line is written to
// the failure log and ErrRetriesExhausted is returned. Cancellation of ctx
// aborts immediately with the context error.
func (c *Client) Lookup(ctx context.Context, link string) (Response, error) {
	reqURL := c.RequestURL(link)
	if _, err := url.Parse(reqURL); err != nil {
		return Response{}, fmt.Errorf("%w for %s: %w", ErrInvalidRequest, link, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		resp, err := c.do(ctx, reqURL)
		metrics.ObserveAttempt(err)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("lookup %s: %w", link, ctxErr)
		}
		lastErr = err
		if attempt == c.cfg.Retries-1 {
			break
		}

		wait := c.BackoffDelay(attempt)
		c.logger.Warn("availability lookup failed, retrying",
			zap.String("link", link),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		metrics.ObserveBackoff(wait)
		if err := c.pauser.Pause(ctx, wait); err != nil {
			return Response{}, fmt.Errorf("lookup %s: %w", link, err)
		}
	}

	msg := fmt.Sprintf("Failed after %d retries: %s", c.cfg.Retries, link)
	c.logger.Error("availability lookup gave up", zap.String("link", link), zap.Error(lastErr))
	if c.failures != nil {
		c.failures.Log(msg)
	}
	return Response{}, fmt.Errorf("%w: %s: %w", ErrRetriesExhausted, link, lastErr)
}

func (c *Client) do(ctx context.Context, reqURL string) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("availability request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close availability response", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read availability response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// TimerPauser sleeps on a timer and wakes early when the context ends.
type TimerPauser struct{}

// Pause implements Pauser.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
