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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
)

// JSONLinesReader turns each non-empty line holding a JSON object into a
// record. Numbers keep their literal text as json.Number. Lines that do not
// hold an object become failed records.
type JSONLinesReader struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	resource string
	line     int64
	skip     int64
	limit    int64
	emitted  int64
	closed   bool
}

var _ pipeline.Reader[*record.Record] = (*JSONLinesReader)(nil)

// NewJSONLinesReader reads from res, which it takes ownership of.
func NewJSONLinesReader(res *Resource, cfg Config) *JSONLinesReader {
	maxLine := cfg.MaxLineSize
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	scanner := bufio.NewScanner(res)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &JSONLinesReader{
		scanner:  scanner,
		closer:   res,
		resource: res.Name,
		skip:     cfg.SkipRecords,
		limit:    cfg.MaxRecords,
	}
}

func (r *JSONLinesReader) Next(ctx context.Context) (*record.Record, error) {
	for {
		if r.closed || (r.limit > 0 && r.emitted >= r.limit) {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("%s: reading line %d: %w", r.resource, r.line+1, err)
			}
			return nil, io.EOF
		}
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		if r.skip > 0 {
			r.skip--
			continue
		}
		r.emitted++
		rowsIn.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatJSON))))
		return r.toRecord(ctx, line), nil
	}
}

func (r *JSONLinesReader) toRecord(ctx context.Context, line string) *record.Record {
	location := record.Location(r.resource, r.line)
	fields, err := decodeObject([]byte(line))
	if err != nil {
		rowsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatJSON))))
		return record.NewFailed(line, location, err)
	}
	return record.New(line, location, fields)
}

var errNotObject = errors.New("line does not hold a JSON object")

// decodeObject returns the members of a JSON object sorted by name.
func decodeObject(b []byte) ([]record.Field, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]record.Field, len(names))
	for i, name := range names {
		fields[i] = record.Field{Name: name, Value: obj[name]}
	}
	return fields, nil
}

func (r *JSONLinesReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closer.Close()
}

// JSONLinesWriter writes each record as one JSON object, members in field
// order.
type JSONLinesWriter struct {
	w      *bufio.Writer
	closer io.Closer
}

func NewJSONLinesWriter(wc io.WriteCloser) *JSONLinesWriter {
	return &JSONLinesWriter{w: bufio.NewWriter(wc), closer: wc}
}

func (w *JSONLinesWriter) Write(ctx context.Context, rec *record.Record) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range rec.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", f.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString("}\n")
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return err
	}
	rowsOut.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("connector", string(FormatJSON))))
	return nil
}

func (w *JSONLinesWriter) Close() error {
	flushErr := w.w.Flush()
	closeErr := w.closer.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
