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

package logmanager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// RecordMappingErrors removes unmappable statements from the stream and logs
// their records.
func (m *Manager) RecordMappingErrors(in pipeline.Reader[statement.Statement]) pipeline.Reader[statement.Statement] {
	return &interceptor[statement.Statement]{
		m:        m,
		category: RecordMapping,
		in:       in,
		inspect: func(s statement.Statement) []entry {
			u, ok := s.(*statement.Unmappable)
			if !ok {
				return nil
			}
			return []entry{{rec: u.Record, err: u.Err, bad: true}}
		},
	}
}

// ResultMappingErrors removes failed records from the stream and logs them.
func (m *Manager) ResultMappingErrors(in pipeline.Reader[*record.Record]) pipeline.Reader[*record.Record] {
	return &interceptor[*record.Record]{
		m:        m,
		category: ResultMapping,
		in:       in,
		inspect: func(r *record.Record) []entry {
			if r.Err() == nil {
				return nil
			}
			return []entry{{rec: r, err: r.Err()}}
		},
	}
}

// WriteErrors removes failed write results from the stream. Each record that
// contributed to a failed request is logged and its source appended to
// operation.bad. A terminal *executor.ExecutionError is logged the same way
// before it is passed on.
func (m *Manager) WriteErrors(in pipeline.Reader[executor.WriteResult]) pipeline.Reader[executor.WriteResult] {
	return &interceptor[executor.WriteResult]{
		m:        m,
		category: Load,
		in:       in,
		inspect: func(r executor.WriteResult) []entry {
			if r.Success() {
				return nil
			}
			return failedEntries(r.Statement, r.Err, true)
		},
		terminal: func(err error) []entry {
			return terminalEntries(err, true)
		},
	}
}

// ReadErrors removes failed read results from the stream and logs them.
func (m *Manager) ReadErrors(in pipeline.Reader[executor.ReadResult]) pipeline.Reader[executor.ReadResult] {
	return &interceptor[executor.ReadResult]{
		m:        m,
		category: Unload,
		in:       in,
		inspect: func(r executor.ReadResult) []entry {
			if r.Success() {
				return nil
			}
			return failedEntries(r.Statement, r.Err, false)
		},
		terminal: func(err error) []entry {
			return terminalEntries(err, false)
		},
	}
}

// failedEntries decomposes a failed request into one entry per statement it
// carried, in batch order.
func failedEntries(s statement.Statement, err error, bad bool) []entry {
	if u, ok := s.(*statement.Unmappable); ok {
		return []entry{{rec: u.Record, err: err, bad: bad}}
	}
	children := statement.Children(s)
	out := make([]entry, 0, len(children))
	for _, child := range children {
		out = append(out, entry{rec: child.Record, stmt: child, err: err, bad: bad})
	}
	return out
}

func terminalEntries(err error, bad bool) []entry {
	var execErr *executor.ExecutionError
	if !errors.As(err, &execErr) {
		return nil
	}
	return failedEntries(execErr.Statement, execErr, bad)
}

// interceptor passes successful values through and logs the failed ones.
type interceptor[T any] struct {
	m        *Manager
	category Category
	in       pipeline.Reader[T]
	// inspect returns the entries to log for v, or nil when v passes.
	inspect  func(v T) []entry
	terminal func(err error) []entry
	err      error
}

func (r *interceptor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if r.err != nil {
		return zero, r.err
	}
	for {
		v, err := r.in.Next(ctx)
		if err != nil {
			if !pipeline.IsEOF(err) && r.terminal != nil {
				r.logTerminal(ctx, err)
			}
			r.err = err
			return zero, err
		}
		entries := r.inspect(v)
		if entries == nil {
			return v, nil
		}
		if err := r.m.record(ctx, r.category, entries); err != nil {
			r.err = err
			return zero, err
		}
	}
}

// logTerminal records the failure that ended the upstream stream. The
// upstream failure stays the terminal signal.
func (r *interceptor[T]) logTerminal(ctx context.Context, err error) {
	entries := r.terminal(err)
	if len(entries) == 0 {
		return
	}
	if lerr := r.m.record(ctx, r.category, entries); lerr != nil {
		var tooMany *TooManyErrorsError
		if !errors.As(lerr, &tooMany) && !errors.Is(lerr, ErrClosed) {
			logctx.FromContext(ctx).Error("Failed to log terminal failure",
				slog.String("category", r.category.String()),
				slog.Any("error", lerr))
		}
	}
}

func (r *interceptor[T]) Close() error {
	return r.in.Close()
}
