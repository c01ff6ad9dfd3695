package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"asistencia/internal/core"
	ports "asistencia/internal/sheets"
)

// SeedFile is the CSV export of the attendance sheet read from the data dir.
const SeedFile = "attendance.csv"

// Store keeps one table in memory. It backs development runs and tests.
type Store struct {
	mu     sync.Mutex
	table  core.Table
	source string
	err    error
}

var (
	_ ports.TableReader = (*Store)(nil)
	_ ports.TableWriter = (*Store)(nil)
)

func New(t core.Table) *Store {
	return &Store{table: copyTable(t)}
}

// NewFromFiles loads <base>/attendance.csv. A missing file yields an empty
// store whose reads fail, so the dashboard shows its degraded notice.
func NewFromFiles(base string) *Store {
	path := filepath.Join(base, SeedFile)
	f, err := os.Open(path)
	if err != nil {
		return &Store{err: fmt.Errorf("open seed: %w", err)}
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return &Store{err: fmt.Errorf("read %s: %w", path, err)}
	}
	return &Store{table: t, source: path}
}

// ReadTable returns a copy of the stored table.
func (s *Store) ReadTable(_ context.Context) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.Table{}, s.err
	}
	if len(s.table.Header) == 0 {
		return core.Table{}, core.ErrEmptyTable
	}
	return copyTable(s.table), nil
}

// ReplaceTable swaps the stored table.
func (s *Store) ReplaceTable(_ context.Context, source string, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = copyTable(t)
	s.source = source
	s.err = nil
	return nil
}

// Fail makes subsequent reads return err until the next ReplaceTable.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ReadCSV parses a CSV export of the sheet. Ragged rows are accepted.
func ReadCSV(r io.Reader) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.Table{}, core.ErrEmptyTable
	}
	if err != nil {
		return core.Table{}, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return core.Table{}, err
	}
	return core.Table{Header: header, Rows: rows}, nil
}

func copyTable(t core.Table) core.Table {
	out := core.Table{Header: append([]string(nil), t.Header...)}
	if t.Rows != nil {
		out.Rows = make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}
