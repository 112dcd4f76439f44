package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/cleaning"
	"github.com/JakeFAU/wiki-citation-archive/internal/policy/ratelimit"
	"github.com/JakeFAU/wiki-citation-archive/internal/report"
	"github.com/JakeFAU/wiki-citation-archive/internal/wikipedia"
)

// Harvest samples articles per category and writes the raw citation table.
func (a *App) Harvest(ctx context.Context) (int, error) {
	h := a.cfg.Harvest
	client := wikipedia.NewClient(
		wikipedia.Config{APIURL: h.APIURL, UserAgent: h.UserAgent},
		a.httpClient,
		ratelimit.New(ratelimit.Config{RPS: h.RequestsPerSecond, Burst: 1}),
		a.logger.Named("wikipedia"),
	)
	rows, err := client.Harvest(ctx, h.Categories, h.TitlesPerCategory)
	if err != nil {
		return 0, fmt.Errorf("harvest citations: %w", err)
	}
	if err := writeFile(a.cfg.Paths.Citations, func(w io.Writer) error {
		return wikipedia.WriteRows(w, rows)
	}); err != nil {
		return 0, err
	}
	a.printf("Saved %d citations to %s\n", len(rows), a.cfg.Paths.Citations)
	return len(rows), nil
}

// Clean normalizes the raw table into the clean table and the non-archive
// work list.
func (a *App) Clean(_ context.Context) (clean, pending int, err error) {
	var raw []wikipedia.Row
	if err := readFile(a.cfg.Paths.Citations, func(r io.Reader) error {
		var rerr error
		raw, rerr = cleaning.ReadRaw(r)
		return rerr
	}); err != nil {
		return 0, 0, err
	}

	rows := cleaning.Clean(raw)
	work := cleaning.NonArchive(rows)
	if err := writeFile(a.cfg.Paths.Clean, func(w io.Writer) error {
		return cleaning.WriteClean(w, rows)
	}); err != nil {
		return 0, 0, err
	}
	if err := writeFile(a.cfg.Paths.NonArchive, func(w io.Writer) error {
		return cleaning.WriteClean(w, work)
	}); err != nil {
		return 0, 0, err
	}
	a.logger.Info("citations cleaned",
		zap.Int("raw", len(raw)),
		zap.Int("clean", len(rows)),
		zap.Int("already_archived", len(rows)-len(work)),
	)
	a.printf("Saved %d clean citations to %s and %d to check to %s\n",
		len(rows), a.cfg.Paths.Clean, len(work), a.cfg.Paths.NonArchive)
	return len(rows), len(work), nil
}

// Finalize normalizes the archive-status table into the final table.
func (a *App) Finalize(_ context.Context) (int, error) {
	var results []citation.Result
	if err := readFile(a.cfg.Paths.Output, func(r io.Reader) error {
		var rerr error
		results, rerr = citation.ReadResults(r)
		return rerr
	}); err != nil {
		return 0, err
	}
	final := cleaning.Finalize(results)
	if err := writeFile(a.cfg.Paths.Final, func(w io.Writer) error {
		return citation.WriteResults(w, final)
	}); err != nil {
		return 0, err
	}
	a.printf("Saved %d final citations to %s\n", len(final), a.cfg.Paths.Final)
	return len(final), nil
}

// Report renders coverage aggregates from the clean and final tables.
func (a *App) Report(_ context.Context) (report.Report, error) {
	var clean []cleaning.Row
	if err := readFile(a.cfg.Paths.Clean, func(r io.Reader) error {
		var rerr error
		clean, rerr = cleaning.ReadClean(r)
		return rerr
	}); err != nil {
		return report.Report{}, err
	}
	var final []citation.Result
	if err := readFile(a.cfg.Paths.Final, func(r io.Reader) error {
		var rerr error
		final, rerr = citation.ReadResults(r)
		return rerr
	}); err != nil {
		return report.Report{}, err
	}
	rep := report.Build(clean, final)
	a.printf("%s\n", report.Render(rep))
	return rep, nil
}

func readFile(path string, decode func(io.Reader) error) error {
	f, err := os.Open(path) // #nosec G304 -- operator-chosen pipeline path.
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := decode(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// writeFile replaces path atomically with whatever encode writes.
func writeFile(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	buf := bufio.NewWriter(tmp)
	if err := encode(buf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
