package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"garc/pkg/gab"
)

// Writer receives records one at a time
type Writer interface {
	Write(rec *gab.Record) error
	Close() error
}

// Options configure New
type Options struct {
	// RunID tags rows in the SQLite archive
	RunID string
	// Stdout is used when no path is given; os.Stdout when nil
	Stdout io.Writer
}

// New creates a writer for format ("json", "csv" or "sqlite"). An empty path
// writes to stdout, which sqlite does not support.
func New(format, path string, opts Options) (Writer, error) {
	format = strings.ToLower(format)
	if format == "sqlite" {
		if path == "" {
			return nil, fmt.Errorf("sqlite output requires a path")
		}
		return NewSQLiteWriter(path, opts.RunID)
	}

	out, closer, err := openDestination(path, opts.Stdout)
	if err != nil {
		return nil, err
	}

	switch format {
	case "json", "jsonl", "":
		return NewJSONLWriter(out, closer), nil
	case "csv":
		return NewCSVWriter(out, closer)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func openDestination(path string, stdout io.Writer) (io.Writer, io.Closer, error) {
	if path == "" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return stdout, nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

// JSONLWriter writes one JSON object per line
type JSONLWriter struct {
	buf    *bufio.Writer
	closer io.Closer
}

// NewJSONLWriter writes to w; closer, if non-nil, is closed by Close
func NewJSONLWriter(w io.Writer, closer io.Closer) *JSONLWriter {
	return &JSONLWriter{buf: bufio.NewWriter(w), closer: closer}
}

// Write encodes rec and flushes the line
func (w *JSONLWriter) Write(rec *gab.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *JSONLWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// CSVHeader is the first row written by CSVWriter
var CSVHeader = []string{"id", "created_at", "account", "text"}

// CSVWriter writes one row per record
type CSVWriter struct {
	csv    *csv.Writer
	closer io.Closer
}

// NewCSVWriter writes the header row and returns the writer
func NewCSVWriter(w io.Writer, closer io.Closer) (*CSVWriter, error) {
	cw := &CSVWriter{csv: csv.NewWriter(w), closer: closer}
	if err := cw.csv.Write(CSVHeader); err != nil {
		return nil, err
	}
	cw.csv.Flush()
	return cw, cw.csv.Error()
}

// Row builds the CSV row for rec
func Row(rec *gab.Record) []string {
	created := ""
	if !rec.CreatedAt.IsZero() {
		created = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{rec.ID, created, rec.Account, rec.Text}
}

func (w *CSVWriter) Write(rec *gab.Record) error {
	if err := w.csv.Write(Row(rec)); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *CSVWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
