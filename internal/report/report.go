// Package report summarizes archive coverage across the cleaned citation
// table and the final archive-status table.
package report

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/cleaning"
)

const (
	topN = 10
	// FirstArchiveYear is the year the Wayback Machine began crawling.
	FirstArchiveYear = 1996
	timestampLayout  = "20060102150405"
)

var tldPattern = regexp.MustCompile(`\.([a-z.]{2,})$`)

// Rate counts found items within a group.
type Rate struct {
	Name  string
	Found int
	Total int
}

// Percent returns Found/Total as a percentage, or 0 for an empty group.
func (r Rate) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Found) / float64(r.Total) * 100
}

// YearCount is one bar of the snapshot year histogram.
type YearCount struct {
	Year  int
	Count int
}

// Report holds every aggregate.
type Report struct {
	// AlreadyArchived counts cleaned citations that are Wayback links.
	AlreadyArchived Rate
	// RegularFound counts final citations with a snapshot.
	RegularFound Rate
	ByCategory   []Rate
	TopDomains   []Rate
	Years        []YearCount
	TopTLDs      []Rate
}

// Build computes the report.
func Build(clean []cleaning.Row, final []citation.Result) Report {
	rep := Report{
		AlreadyArchived: Rate{Name: "already archived", Total: len(clean)},
		RegularFound:    Rate{Name: "regular links archived", Total: len(final)},
	}
	for _, row := range clean {
		if row.IsArchiveLink {
			rep.AlreadyArchived.Found++
		}
	}

	byCategory := map[string]*Rate{}
	byDomain := map[string]*Rate{}
	byTLD := map[string]*Rate{}
	years := map[int]int{}

	for _, res := range final {
		if res.Found {
			rep.RegularFound.Found++
		}
		tally(byCategory, res.Category, res.Found)
		if res.Domain != nil {
			tally(byDomain, *res.Domain, res.Found)
			if tld := TLD(*res.Domain); tld != "" {
				tally(byTLD, tld, res.Found)
			}
		}
		if year, ok := SnapshotYear(res.Timestamp); ok && year >= FirstArchiveYear {
			years[year]++
		}
	}

	rep.ByCategory = byPercent(values(byCategory))
	rep.TopDomains = byPercent(top(values(byDomain), topN))
	rep.TopTLDs = byPercent(top(values(byTLD), topN))
	rep.Years = histogram(years)
	return rep
}

// TLD extracts the suffix after the first dot that is followed only by
// lowercase letters and dots, so "bbc.co.uk" yields "co.uk" and a domain
// carrying a port yields "".
func TLD(domain string) string {
	m := tldPattern.FindStringSubmatch(domain)
	if m == nil {
		return ""
	}
	return m[1]
}

// SnapshotYear parses a Wayback timestamp, tolerating a trailing fractional
// part left by spreadsheet tools.
func SnapshotYear(ts *string) (int, bool) {
	if ts == nil {
		return 0, false
	}
	raw, _, _ := strings.Cut(strings.TrimSpace(*ts), ".")
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}

func tally(groups map[string]*Rate, name string, found bool) {
	r, ok := groups[name]
	if !ok {
		r = &Rate{Name: name}
		groups[name] = r
	}
	r.Total++
	if found {
		r.Found++
	}
}

func values(groups map[string]*Rate) []Rate {
	out := make([]Rate, 0, len(groups))
	for _, r := range groups {
		out = append(out, *r)
	}
	return out
}

// top keeps the n most frequent groups, ties broken by name.
func top(rates []Rate, n int) []Rate {
	slices.SortFunc(rates, func(a, b Rate) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(rates) > n {
		rates = rates[:n]
	}
	return rates
}

func byPercent(rates []Rate) []Rate {
	slices.SortStableFunc(rates, func(a, b Rate) int {
		if c := cmp.Compare(b.Percent(), a.Percent()); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return rates
}

// histogram fills every year from FirstArchiveYear through the latest seen.
func histogram(years map[int]int) []YearCount {
	if len(years) == 0 {
		return nil
	}
	last := FirstArchiveYear
	for y := range years {
		last = max(last, y)
	}
	out := make([]YearCount, 0, last-FirstArchiveYear+1)
	for y := FirstArchiveYear; y <= last; y++ {
		out = append(out, YearCount{Year: y, Count: years[y]})
	}
	return out
}
