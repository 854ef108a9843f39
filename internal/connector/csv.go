// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package connector

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
)

// CSVReader turns delimited lines into records. Lines that cannot be parsed,
// or that do not match the header, become failed records.
type CSVReader struct {
	reader   *csv.Reader
	input    *inputTee
	closer   io.Closer
	resource string
	comment  rune
	headers  []string
	skip     int64
	limit    int64
	emitted  int64
	closed   bool
}

var _ pipeline.Reader[*record.Record] = (*CSVReader)(nil)

// NewCSVReader reads from res, which it takes ownership of. Without a header
// line, fields are named by their zero-based position.
func NewCSVReader(res *Resource, cfg Config) (*CSVReader, error) {
	delimiter, err := cfg.delimiter()
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	comment, err := cfg.comment()
	if err != nil {
		_ = res.Close()
		return nil, err
	}

	input := &inputTee{r: res}
	cr := csv.NewReader(input)
	cr.Comma = delimiter
	cr.Comment = comment
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	r := &CSVReader{
		reader:   cr,
		input:    input,
		closer:   res,
		resource: res.Name,
		comment:  comment,
		skip:     cfg.SkipRecords,
		limit:    cfg.MaxRecords,
	}
	if cfg.Header {
		headers, err := cr.Read()
		if err != nil {
			_ = res.Close()
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s: missing header line", res.Name)
			}
			return nil, fmt.Errorf("%s: reading header: %w", res.Name, err)
		}
		for i := range headers {
			headers[i] = strings.TrimSpace(headers[i])
		}
		r.headers = headers
		r.input.take(cr.InputOffset())
	}
	return r, nil
}

func (r *CSVReader) Next(ctx context.Context) (*record.Record, error) {
	for {
		if r.closed || (r.limit > 0 && r.emitted >= r.limit) {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		raw := r.input.take(r.reader.InputOffset())
		var line int
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("%s: %w", r.resource, err)
			}
			line = parseErr.StartLine
		} else {
			line, _ = r.reader.FieldPos(0)
		}
		if r.skip > 0 {
			r.skip--
			continue
		}
		r.emitted++
		rowsIn.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatCSV))))
		return r.toRecord(ctx, fields, r.source(raw), int64(line), err), nil
	}
}

func (r *CSVReader) toRecord(ctx context.Context, values []string, source string, line int64, err error) *record.Record {
	location := record.Location(r.resource, line)
	if err != nil {
		rowsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatCSV))))
		return record.NewFailed(source, location, err)
	}
	if r.headers != nil && len(values) != len(r.headers) {
		rowsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatCSV))))
		return record.NewFailed(source, location,
			fmt.Errorf("expected %d fields, got %d", len(r.headers), len(values)))
	}
	fields := make([]record.Field, len(values))
	for i, v := range values {
		name := strconv.Itoa(i)
		if r.headers != nil {
			name = r.headers[i]
		}
		fields[i] = record.Field{Name: name, Value: v}
	}
	return record.New(source, location, fields)
}

// source returns the input text of one record: raw minus the blank and
// comment lines the csv reader skipped before it and the final line ending.
func (r *CSVReader) source(raw []byte) string {
	for len(raw) > 0 {
		end := bytes.IndexByte(raw, '\n')
		if end < 0 {
			break
		}
		line := bytes.TrimSuffix(raw[:end], []byte("\r"))
		if len(line) > 0 && (r.comment == 0 || !bytes.HasPrefix(line, []byte(string(r.comment)))) {
			break
		}
		raw = raw[end+1:]
	}
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	return string(raw)
}

// inputTee keeps the bytes read from r that no record has claimed yet.
type inputTee struct {
	r    io.Reader
	buf  []byte
	base int64
}

func (t *inputTee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	return n, err
}

// take returns the input up to offset end and forgets it.
func (t *inputTee) take(end int64) []byte {
	n := max(0, min(int(end-t.base), len(t.buf)))
	span := t.buf[:n:n]
	t.buf = t.buf[n:]
	t.base += int64(n)
	return span
}

// Headers returns the header fields, or nil when the input has none.
func (r *CSVReader) Headers() []string { return r.headers }

func (r *CSVReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closer.Close()
}

// CSVWriter writes records as delimited lines. The first record's field
// names become the header line when a header is requested.
type CSVWriter struct {
	w       *csv.Writer
	closer  io.Closer
	header  bool
	wrote   bool
	columns []string
}

func NewCSVWriter(wc io.WriteCloser, cfg Config) (*CSVWriter, error) {
	delimiter, err := cfg.delimiter()
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(wc)
	w.Comma = delimiter
	return &CSVWriter{w: w, closer: wc, header: cfg.Header}, nil
}

func (w *CSVWriter) Write(ctx context.Context, rec *record.Record) error {
	if !w.wrote {
		w.wrote = true
		w.columns = rec.Names()
		if w.header {
			if err := w.w.Write(w.columns); err != nil {
				return err
			}
		}
	}
	line := make([]string, len(w.columns))
	for i, name := range w.columns {
		v, _ := rec.Get(name)
		line[i] = textOf(v)
	}
	if err := w.w.Write(line); err != nil {
		return err
	}
	rowsOut.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatCSV))))
	return nil
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func (w *CSVWriter) Close() error {
	w.w.Flush()
	flushErr := w.w.Error()
	closeErr := w.closer.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
