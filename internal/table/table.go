// Package table writes flattened file records as the CSV tables consumed by
// bulk URL registration.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/five82/xnatrack/internal/query"
)

// Column is one table column.
type Column struct {
	Name  string
	Value func(query.FileRecord) string
}

// Schema is an ordered set of columns.
type Schema []Column

var (
	colSubject  = Column{Name: "subject", Value: func(r query.FileRecord) string { return r.SubjectID }}
	colSession  = Column{Name: "session", Value: func(r query.FileRecord) string { return r.ExperimentID }}
	colScan     = Column{Name: "scan", Value: func(r query.FileRecord) string { return r.ScanID }}
	colResource = Column{Name: "resource", Value: func(r query.FileRecord) string { return r.Collection }}
	colFilename = Column{Name: "filename", Value: func(r query.FileRecord) string { return r.Name }}
	colURL      = Column{Name: "url", Value: func(r query.FileRecord) string { return r.URL }}
)

// DefaultSchema is subject,session,scan,filename,url.
var DefaultSchema = Schema{colSubject, colSession, colScan, colFilename, colURL}

// ResourceSchema adds the resource (collection) label before the filename.
var ResourceSchema = Schema{colSubject, colSession, colScan, colResource, colFilename, colURL}

// Header returns the column names.
func (s Schema) Header() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Row renders one record.
func (s Schema) Row(r query.FileRecord) []string {
	row := make([]string, len(s))
	for i, c := range s {
		row[i] = c.Value(r)
	}
	return row
}

// Outcome reports what Stream decided to do with the table file.
type Outcome int

const (
	// Written means the table is (re)generated while the sequence is consumed.
	Written Outcome = iota
	// Exists means the table was left untouched because it already exists
	// and force was not set. This is not an error.
	Exists
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Exists:
		return "exists"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Options configure a Writer.
type Options struct {
	Schema Schema
	Force  bool
	Logger *slog.Logger
}

// Writer emits tables with one schema and overwrite policy.
type Writer struct {
	schema Schema
	force  bool
	logger *slog.Logger
	open   func(path string) (io.WriteCloser, error)
}

// NewWriter builds a Writer. A nil Schema uses DefaultSchema.
func NewWriter(opts Options) *Writer {
	schema := opts.Schema
	if len(schema) == 0 {
		schema = DefaultSchema
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Writer{schema: schema, force: opts.Force, logger: logger.With(slog.String("component", "table"))}
	w.open = w.create
	return w
}

// Stream decides whether the table at path should be generated. For Exists
// the returned sequence is empty and the file is not touched. For Written
// the file is created when iteration starts; the header is written first and
// every record is written and flushed before it is yielded onward, so a
// consumer that stops early leaves a valid header+N table.
func (w *Writer) Stream(path string, records iter.Seq2[query.FileRecord, error]) (iter.Seq2[query.FileRecord, error], Outcome) {
	if _, err := os.Stat(path); err == nil && !w.force {
		w.logger.Info("table already exists, use force to query latest info", slog.String("path", path))
		return func(func(query.FileRecord, error) bool) {}, Exists
	}

	return func(yield func(query.FileRecord, error) bool) {
		out, err := w.open(path)
		if err != nil {
			yield(query.FileRecord{}, err)
			return
		}
		closed := false
		defer func() {
			if !closed {
				_ = out.Close()
			}
		}()

		cw := csv.NewWriter(out)
		if err := writeRow(cw, w.schema.Header()); err != nil {
			yield(query.FileRecord{}, fmt.Errorf("write table header: %w", err))
			return
		}
		for rec, err := range records {
			if err != nil {
				yield(query.FileRecord{}, err)
				return
			}
			if err := writeRow(cw, w.schema.Row(rec)); err != nil {
				yield(query.FileRecord{}, fmt.Errorf("write table row: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}

		closed = true
		if err := out.Close(); err != nil {
			yield(query.FileRecord{}, fmt.Errorf("close table: %w", err))
		}
	}, Written
}

// Write drains records into the table at path and returns the number of
// rows written.
func (w *Writer) Write(path string, records iter.Seq2[query.FileRecord, error]) (Outcome, int, error) {
	seq, outcome := w.Stream(path, records)
	rows := 0
	for _, err := range seq {
		if err != nil {
			return outcome, rows, err
		}
		rows++
	}
	return outcome, rows, nil
}

func (w *Writer) create(path string) (io.WriteCloser, error) {
	if w.force {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove existing table: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create table dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return f, nil
}

func writeRow(cw *csv.Writer, row []string) error {
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
