// Package citation defines the citation work items checked against the Wayback
// Machine and the archive results produced for them.
package citation

import (
	"net/url"
	"strings"
)

// WorkItem is one harvested citation link pending an archive lookup.
type WorkItem struct {
	Link        string
	Category    string
	ArticleName string
}

// Result is the archive status recorded for a single WorkItem.
// Nil pointer fields are written as empty cells in the output store.
type Result struct {
	Link        string
	ArticleName string
	Category    string
	Domain      *string
	Found       bool
	ArchiveURL  *string
	Timestamp   *string

	// Fallback marks a result synthesized after every lookup attempt failed.
	// It lives only in memory; the output store has no column for it.
	Fallback bool
}

// Domain returns the lowercased network authority of link, or nil when the
// link cannot be parsed.
func Domain(link string) *string {
	u, err := url.Parse(link)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Host)
	return &host
}

// NewResult builds a not-found result with the domain derived from the link.
func NewResult(item WorkItem) Result {
	return Result{
		Link:        item.Link,
		ArticleName: item.ArticleName,
		Category:    item.Category,
		Domain:      Domain(item.Link),
	}
}

// Fallback builds the degraded result recorded when every lookup attempt
// failed outright. All archive fields, including the domain, are null.
func Fallback(item WorkItem) Result {
	return Result{
		Link:        item.Link,
		ArticleName: item.ArticleName,
		Category:    item.Category,
		Fallback:    true,
	}
}

// WithSnapshot marks the result as archived at the given snapshot.
func (r Result) WithSnapshot(archiveURL, timestamp string) Result {
	r.Found = true
	r.ArchiveURL = &archiveURL
	r.Timestamp = &timestamp
	return r
}

// Item recovers the WorkItem identity fields of a stored result.
func (r Result) Item() WorkItem {
	return WorkItem{Link: r.Link, Category: r.Category, ArticleName: r.ArticleName}
}
