package citation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names shared by the work list and the output store.
const (
	ColLink        = "citation_link"
	ColArticleName = "article_name"
	ColCategory    = "category"
	ColDomain      = "domain"
	ColFound       = "found"
	ColArchiveURL  = "archive_url"
	ColTimestamp   = "timestamp"
)

// ResultHeader is the column order of the output store.
var ResultHeader = []string{
	ColLink,
	ColArticleName,
	ColCategory,
	ColDomain,
	ColFound,
	ColArchiveURL,
	ColTimestamp,
}

// ErrMissingColumn reports a table without one of the required columns.
var ErrMissingColumn = errors.New("missing required column")

// Columns maps header names to their index.
type Columns map[string]int

// IndexColumns builds a Columns lookup from a header row. Cells are trimmed and
// a UTF-8 byte order mark on the first cell is ignored.
func IndexColumns(header []string) Columns {
	cols := make(Columns, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// Require returns the index of the first present name, or ErrMissingColumn.
func (c Columns) Require(names ...string) (int, error) {
	for _, name := range names {
		if idx, ok := c[name]; ok {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingColumn, names[0])
}

// Get returns the cell for the column at idx, or "" for short records.
func Get(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// ReadWorkItems decodes a work list table. The article column may be named
// either article_name or article (the raw harvest name).
func ReadWorkItems(r io.Reader) ([]WorkItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := IndexColumns(header)
	linkIdx, err := cols.Require(ColLink)
	if err != nil {
		return nil, err
	}
	categoryIdx, err := cols.Require(ColCategory)
	if err != nil {
		return nil, err
	}
	articleIdx, err := cols.Require(ColArticleName, "article")
	if err != nil {
		return nil, err
	}

	var items []WorkItem
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read work item: %w", err)
		}
		items = append(items, WorkItem{
			Link:        Get(record, linkIdx),
			Category:    Get(record, categoryIdx),
			ArticleName: Get(record, articleIdx),
		})
	}
	return items, nil
}

// Record encodes the result in ResultHeader order. Booleans are written as
// True/False so stores produced by earlier tooling stay readable both ways.
func (r Result) Record() []string {
	return []string{
		r.Link,
		r.ArticleName,
		r.Category,
		deref(r.Domain),
		FormatBool(r.Found),
		deref(r.ArchiveURL),
		deref(r.Timestamp),
	}
}

// ResultDecoder decodes output store rows by header name.
type ResultDecoder struct {
	link, article, category, domain, found, archiveURL, timestamp int
}

// NewResultDecoder validates an output store header.
func NewResultDecoder(header []string) (*ResultDecoder, error) {
	cols := IndexColumns(header)
	d := &ResultDecoder{}
	var err error
	if d.link, err = cols.Require(ColLink); err != nil {
		return nil, err
	}
	if d.article, err = cols.Require(ColArticleName, "article"); err != nil {
		return nil, err
	}
	if d.category, err = cols.Require(ColCategory); err != nil {
		return nil, err
	}
	d.domain = optional(cols, ColDomain)
	d.found = optional(cols, ColFound)
	d.archiveURL = optional(cols, ColArchiveURL)
	d.timestamp = optional(cols, ColTimestamp)
	return d, nil
}

// Decode converts one row into a Result. Empty cells become nil fields.
func (d *ResultDecoder) Decode(record []string) (Result, error) {
	res := Result{
		Link:        Get(record, d.link),
		ArticleName: Get(record, d.article),
		Category:    Get(record, d.category),
		Domain:      nullable(Get(record, d.domain)),
		ArchiveURL:  nullable(Get(record, d.archiveURL)),
		Timestamp:   nullable(Get(record, d.timestamp)),
	}
	if raw := strings.TrimSpace(Get(record, d.found)); raw != "" {
		found, err := strconv.ParseBool(raw)
		if err != nil {
			return Result{}, fmt.Errorf("parse %s %q: %w", ColFound, raw, err)
		}
		res.Found = found
	}
	return res, nil
}

// ReadResults decodes a full output store table.
func ReadResults(r io.Reader) ([]Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	dec, err := NewResultDecoder(header)
	if err != nil {
		return nil, err
	}
	var out []Result
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read result: %w", err)
		}
		res, err := dec.Decode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// WriteResults writes a header and every result.
func WriteResults(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, res := range results {
		if err := cw.Write(res.Record()); err != nil {
			return fmt.Errorf("write result %s: %w", res.Link, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}

func optional(cols Columns, name string) int {
	if idx, ok := cols[name]; ok {
		return idx
	}
	return -1
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FormatBool renders a boolean cell the way the pipeline's tables spell it.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
