// Package store implements the output store: an append-only CSV table of
// archive results that doubles as the resume checkpoint.
package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
)

// KeyFunc derives the resume identity of a work item.
type KeyFunc func(citation.WorkItem) string

// DoneSet holds the resume keys already present in the store.
type DoneSet map[string]struct{}

// Has reports whether key is done.
func (d DoneSet) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Add marks key as done.
func (d DoneSet) Add(key string) {
	d[key] = struct{}{}
}

// LoadDone reads the store at path and returns the keys of every complete row.
// A missing file yields an empty set. Rows with the wrong field count are
// skipped. Call it after Open, which drops a torn final row.
func LoadDone(path string, key KeyFunc, logger *zap.Logger) (DoneSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := DoneSet{}

	f, err := os.Open(path) // #nosec G304 -- operator-chosen output path.
	if errors.Is(err, os.ErrNotExist) {
		return done, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open output store %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Debug("close output store", zap.Error(cerr))
		}
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return done, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output store header: %w", err)
	}
	dec, err := citation.NewResultDecoder(header)
	if err != nil {
		return nil, fmt.Errorf("output store %s: %w", path, err)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("stopping at unreadable output store row", zap.String("path", path), zap.Error(err))
			break
		}
		if len(record) != len(header) {
			logger.Warn("skipping incomplete output store row",
				zap.String("path", path),
				zap.Int("fields", len(record)),
			)
			continue
		}
		res, err := dec.Decode(record)
		if err != nil {
			logger.Warn("skipping undecodable output store row", zap.String("path", path), zap.Error(err))
			continue
		}
		done.Add(key(res.Item()))
	}
	return done, nil
}

// Sink is the single writer of the output store. The header is emitted exactly
// once, on the first Append into a store that was empty when opened.
type Sink struct {
	path          string
	file          *os.File
	buf           *bufio.Writer
	csv           *csv.Writer
	headerPending bool
	rows          int
}

// Open prepares the store at path for appending, creating it if needed.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644) // #nosec G302 G304 -- operator-chosen output path.
	if err != nil {
		return nil, fmt.Errorf("open output store %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat output store %s: %w", path, err)
	}

	s := &Sink{
		path:          path,
		file:          f,
		buf:           bufio.NewWriter(f),
		headerPending: info.Size() == 0,
	}
	s.csv = csv.NewWriter(s.buf)

	if info.Size() > 0 {
		size, err := dropTornRow(f, info.Size())
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.headerPending = size == 0
	}
	return s, nil
}

// dropTornRow truncates the store after its last complete CSV record. A record
// is complete when it parses and ends with its newline; anything after it was
// cut off mid-write, never counted as done, and is discarded so it gets
// rechecked. Quoted fields may hold newlines, so the boundary comes from the
// CSV reader rather than from the last newline byte. It returns the new size.
func dropTornRow(f *os.File, size int64) (int64, error) {
	reader := csv.NewReader(bufio.NewReader(io.NewSectionReader(f, 0, size)))
	reader.FieldsPerRecord = -1

	var keep, prev int64
	for {
		if _, err := reader.Read(); err != nil {
			// io.EOF ends a clean table; a parse error marks the torn tail.
			break
		}
		prev, keep = keep, reader.InputOffset()
	}

	if keep == size && size > 0 {
		terminated, err := endsWithNewline(f, size)
		if err != nil {
			return 0, err
		}
		if !terminated {
			keep = prev
		}
	}
	if keep == size {
		return size, nil
	}
	return truncate(f, keep)
}

func endsWithNewline(f *os.File, size int64) (bool, error) {
	b := make([]byte, 1)
	if _, err := f.ReadAt(b, size-1); err != nil {
		return false, fmt.Errorf("inspect output store tail: %w", err)
	}
	return b[0] == '\n', nil
}

func truncate(f *os.File, size int64) (int64, error) {
	if err := f.Truncate(size); err != nil {
		return 0, fmt.Errorf("drop torn output store row: %w", err)
	}
	return size, nil
}

// Path returns the store location.
func (s *Sink) Path() string {
	return s.path
}

// Rows returns the number of rows appended through this sink.
func (s *Sink) Rows() int {
	return s.rows
}

// Append writes one result into the process buffer.
func (s *Sink) Append(res citation.Result) error {
	if s.headerPending {
		if err := s.csv.Write(citation.ResultHeader); err != nil {
			return fmt.Errorf("write output store header: %w", err)
		}
		s.headerPending = false
	}
	if err := s.csv.Write(res.Record()); err != nil {
		return fmt.Errorf("append %s: %w", res.Link, err)
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return fmt.Errorf("append %s: %w", res.Link, err)
	}
	s.rows++
	return nil
}

// Checkpoint pushes buffered rows to the file and syncs it to stable storage.
func (s *Sink) Checkpoint() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush output store: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync output store: %w", err)
	}
	return nil
}

// Close checkpoints and closes the store.
func (s *Sink) Close() error {
	cpErr := s.Checkpoint()
	closeErr := s.file.Close()
	if cpErr != nil {
		return cpErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output store: %w", closeErr)
	}
	return nil
}
