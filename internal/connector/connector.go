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
	"context"
	"fmt"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
)

// Writer receives converted records during an unload.
type Writer interface {
	Write(ctx context.Context, rec *record.Record) error
	Close() error
}

var (
	_ Writer = (*CSVWriter)(nil)
	_ Writer = (*JSONLinesWriter)(nil)
)

// NewReader opens cfg.URL and returns the reader for the configured format.
func NewReader(ctx context.Context, cfg Config) (pipeline.Reader[*record.Record], error) {
	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}
	res, err := Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return NewJSONLinesReader(res, cfg), nil
	default:
		r, err := NewCSVReader(res, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// NewWriter creates cfg.URL and returns the writer for the configured format.
func NewWriter(cfg Config) (Writer, error) {
	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}
	wc, err := Create(cfg.URL)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return NewJSONLinesWriter(wc), nil
	default:
		w, err := NewCSVWriter(wc, cfg)
		if err != nil {
			_ = wc.Close()
			return nil, err
		}
		return w, nil
	}
}

// WriteAll writes every record read from in and returns how many were
// written. The reader is closed; the writer is not.
func WriteAll(ctx context.Context, w Writer, in pipeline.Reader[*record.Record]) (int64, error) {
	defer in.Close()
	var n int64
	for {
		rec, err := in.Next(ctx)
		if err != nil {
			if pipeline.IsEOF(err) {
				return n, nil
			}
			return n, err
		}
		if err := w.Write(ctx, rec); err != nil {
			return n, fmt.Errorf("writing %s: %w", rec.Location(), err)
		}
		n++
	}
}
