// Package wikipedia harvests external citation links from Wikipedia articles
// through the MediaWiki action API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/metrics"
)

const (
	// DefaultAPIURL is the English Wikipedia action API.
	DefaultAPIURL = "https://en.wikipedia.org/w/api.php"
	// DefaultUserAgent identifies the harvester to Wikipedia.
	DefaultUserAgent = "WikiProjectBot/1.0"
	// DefaultTitlesPerCategory is how many members are sampled per category.
	DefaultTitlesPerCategory = 5

	maxBodyBytes = 8 << 20
)

// DefaultCategories are the top-level content categories sampled by default.
var DefaultCategories = []string{
	"Culture",
	"Geography",
	"Health",
	"History",
	"Human activities",
	"Mathematics",
	"Natural sciences",
	"People",
	"Philosophy",
	"Religion",
	"Society",
	"Technology",
	"General reference",
}

// Doer issues HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Waiter paces requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config configures a Client.
type Config struct {
	APIURL    string
	UserAgent string
}

// Client talks to the MediaWiki action API.
type Client struct {
	apiURL    string
	userAgent string
	doer      Doer
	waiter    Waiter
	logger    *zap.Logger
}

// NewClient builds a Client. waiter may be nil to disable pacing.
func NewClient(cfg Config, doer Doer, waiter Waiter, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiURL:    cfg.APIURL,
		userAgent: cfg.UserAgent,
		doer:      doer,
		waiter:    waiter,
		logger:    logger,
	}
}

type categoryMembersPayload struct {
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

// CategoryTitles lists up to limit member titles of Category:<category>.
// A non-200 answer yields no titles.
func (c *Client) CategoryTitles(ctx context.Context, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultTitlesPerCategory
	}
	params := url.Values{
		"action":  {"query"},
		"list":    {"categorymembers"},
		"cmtitle": {"Category:" + category},
		"cmlimit": {strconv.Itoa(limit)},
		"format":  {"json"},
	}
	var payload categoryMembersPayload
	ok, err := c.get(ctx, "categorymembers", params, &payload)
	if err != nil || !ok {
		return nil, err
	}
	titles := make([]string, 0, len(payload.Query.CategoryMembers))
	for _, member := range payload.Query.CategoryMembers {
		titles = append(titles, member.Title)
	}
	return titles, nil
}

type externalLinksPayload struct {
	Parse *struct {
		ExternalLinks []string `json:"externallinks"`
	} `json:"parse"`
}

// ExternalLinks returns the external links cited by the article title. A
// non-200 answer or an API error payload yields no links.
func (c *Client) ExternalLinks(ctx context.Context, title string) ([]string, error) {
	params := url.Values{
		"action": {"parse"},
		"page":   {title},
		"prop":   {"externallinks"},
		"format": {"json"},
	}
	var payload externalLinksPayload
	ok, err := c.get(ctx, "parse", params, &payload)
	if err != nil || !ok || payload.Parse == nil {
		return nil, err
	}
	return payload.Parse.ExternalLinks, nil
}

// get performs one API call and decodes a 200 body into out. It reports false
// without error for any other status.
func (c *Client) get(ctx context.Context, action string, params url.Values, out any) (bool, error) {
	reqURL := c.apiURL + "?" + params.Encode()
	if c.waiter != nil {
		if err := c.waiter.Wait(ctx, reqURL); err != nil {
			return false, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		metrics.ObserveWikipediaRequest(action, 0)
		return false, fmt.Errorf("%s request: %w", action, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close wikipedia response", zap.Error(cerr))
		}
	}()
	metrics.ObserveWikipediaRequest(action, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("wikipedia request failed",
			zap.String("action", action),
			zap.Int("status", resp.StatusCode),
		)
		return false, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, fmt.Errorf("read %s response: %w", action, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", action, err)
	}
	return true, nil
}
