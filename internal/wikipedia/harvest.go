package wikipedia

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// RawHeader is the header of the raw harvest table.
var RawHeader = []string{"category", "article", "citation_link"}

// Row is one harvested citation.
type Row struct {
	Category     string
	Article      string
	CitationLink string
}

// Harvest samples limit articles from every category and collects each
// article's external links, in category then article order.
func (c *Client) Harvest(ctx context.Context, categories []string, limit int) ([]Row, error) {
	var rows []Row
	for _, category := range categories {
		c.logger.Info("processing category", zap.String("category", category))
		titles, err := c.CategoryTitles(ctx, category, limit)
		if err != nil {
			return rows, fmt.Errorf("list category %q: %w", category, err)
		}
		for _, title := range titles {
			links, err := c.ExternalLinks(ctx, title)
			if err != nil {
				return rows, fmt.Errorf("links of %q: %w", title, err)
			}
			for _, link := range links {
				rows = append(rows, Row{Category: category, Article: title, CitationLink: link})
			}
			c.logger.Debug("article harvested",
				zap.String("category", category),
				zap.String("article", title),
				zap.Int("links", len(links)),
			)
		}
	}
	return rows, nil
}

// WriteRows writes the raw harvest table.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Category, row.Article, row.CitationLink}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}
