// Package cleaning normalizes the harvested citation table before lookups and
// the archive-status table after them.
package cleaning

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/wikipedia"
)

// ColIsArchiveLink flags citations that already point at the Wayback Machine.
const ColIsArchiveLink = "is_archive_link"

// CleanHeader is the column order of the clean and non-archive tables.
var CleanHeader = []string{
	citation.ColCategory,
	citation.ColArticleName,
	citation.ColLink,
	ColIsArchiveLink,
}

var archiveLinkPattern = regexp.MustCompile(`^https?://web\.archive\.org/web/`)

// Row is one cleaned citation.
type Row struct {
	Category      string
	ArticleName   string
	CitationLink  string
	IsArchiveLink bool
}

// Item converts the row into a lookup work item.
func (r Row) Item() citation.WorkItem {
	return citation.WorkItem{Link: r.CitationLink, Category: r.Category, ArticleName: r.ArticleName}
}

// IsArchiveLink reports whether link is already a Wayback Machine capture.
func IsArchiveLink(link string) bool {
	return archiveLinkPattern.MatchString(link)
}

// StripWWW removes every "www." that directly follows an http or https scheme.
func StripWWW(link string) string {
	link = strings.ReplaceAll(link, "https://www.", "https://")
	return strings.ReplaceAll(link, "http://www.", "http://")
}

// Clean drops rows with an empty cell, keeps the first row per raw link,
// discards links that do not start with "http", then trims and strips
// "www." from the survivors and flags archive links. Order is preserved.
func Clean(raw []wikipedia.Row) []Row {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Row, 0, len(raw))
	for _, r := range raw {
		if r.Category == "" || r.Article == "" || r.CitationLink == "" {
			continue
		}
		if _, dup := seen[r.CitationLink]; dup {
			continue
		}
		seen[r.CitationLink] = struct{}{}
		if !strings.HasPrefix(r.CitationLink, "http") {
			continue
		}
		link := StripWWW(strings.TrimSpace(r.CitationLink))
		out = append(out, Row{
			Category:      r.Category,
			ArticleName:   r.Article,
			CitationLink:  link,
			IsArchiveLink: IsArchiveLink(link),
		})
	}
	return out
}

// NonArchive returns the rows that still need an availability lookup.
func NonArchive(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.IsArchiveLink {
			out = append(out, r)
		}
	}
	return out
}

// Finalize keeps the first result per raw link, discards links that do not
// start with "http", then trims, strips "www." and lowercases the survivors.
func Finalize(results []citation.Result) []citation.Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]citation.Result, 0, len(results))
	for _, res := range results {
		if _, dup := seen[res.Link]; dup {
			continue
		}
		seen[res.Link] = struct{}{}
		if !strings.HasPrefix(res.Link, "http") {
			continue
		}
		res.Link = strings.ToLower(StripWWW(strings.TrimSpace(res.Link)))
		out = append(out, res)
	}
	return out
}

// ReadRaw decodes the raw harvest table.
func ReadRaw(r io.Reader) ([]wikipedia.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := citation.IndexColumns(header)
	categoryIdx, err := cols.Require(citation.ColCategory)
	if err != nil {
		return nil, err
	}
	articleIdx, err := cols.Require("article", citation.ColArticleName)
	if err != nil {
		return nil, err
	}
	linkIdx, err := cols.Require(citation.ColLink)
	if err != nil {
		return nil, err
	}

	var rows []wikipedia.Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read raw row: %w", err)
		}
		rows = append(rows, wikipedia.Row{
			Category:     citation.Get(record, categoryIdx),
			Article:      citation.Get(record, articleIdx),
			CitationLink: citation.Get(record, linkIdx),
		})
	}
	return rows, nil
}

// ReadClean decodes a clean or non-archive table.
func ReadClean(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := citation.IndexColumns(header)
	categoryIdx, err := cols.Require(citation.ColCategory)
	if err != nil {
		return nil, err
	}
	articleIdx, err := cols.Require(citation.ColArticleName, "article")
	if err != nil {
		return nil, err
	}
	linkIdx, err := cols.Require(citation.ColLink)
	if err != nil {
		return nil, err
	}
	archiveIdx := -1
	if idx, ok := cols[ColIsArchiveLink]; ok {
		archiveIdx = idx
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read clean row: %w", err)
		}
		link := citation.Get(record, linkIdx)
		row := Row{
			Category:     citation.Get(record, categoryIdx),
			ArticleName:  citation.Get(record, articleIdx),
			CitationLink: link,
		}
		if flag := strings.TrimSpace(citation.Get(record, archiveIdx)); flag != "" {
			row.IsArchiveLink = strings.EqualFold(flag, "true")
		} else {
			row.IsArchiveLink = IsArchiveLink(link)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteClean writes rows with CleanHeader.
func WriteClean(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CleanHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.Category, r.ArticleName, r.CitationLink, citation.FormatBool(r.IsArchiveLink)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write clean row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush clean rows: %w", err)
	}
	return nil
}
