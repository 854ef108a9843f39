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

package executor

import (
	"context"
	"errors"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Read executes one query and streams its rows. Up to queueFactory(FetchSize)
// rows are fetched ahead of the consumer. A failed read ends the stream with
// an *ExecutionError in fail-fast mode and yields one failed result otherwise.
func (e *Executor) Read(ctx context.Context, s *statement.Bound) pipeline.Reader[ReadResult] {
	return e.ReadAll(ctx, pipeline.FromSlice(s))
}

// ReadAll executes every query read from in, concurrently, and streams their
// rows. Each query fetches into its own queue sized by its fetch size. Rows
// of one query keep their order; rows of different queries interleave.
func (e *Executor) ReadAll(ctx context.Context, in pipeline.Reader[*statement.Bound]) pipeline.Reader[ReadResult] {
	bound, stop := e.bind(ctx)
	return pipeline.Generate(bound, 0, func(ctx context.Context, emit pipeline.Emit[ReadResult]) error {
		defer stop()
		return dispatchAll(e, ctx, in, asBound, e.query, emit)
	})
}

func asBound(s *statement.Bound) statement.Statement { return s }

// queryFailure is a failure reported by the session, as opposed to the
// read being cancelled.
type queryFailure struct{ err error }

func (f *queryFailure) Error() string { return f.err.Error() }
func (f *queryFailure) Unwrap() error { return f.err }

// query runs one read to completion. The request stays in flight until its
// last row has been handed to the consumer.
func (e *Executor) query(ctx context.Context, s *statement.Bound, emit pipeline.Emit[ReadResult]) error {
	e.listener.OnExecutionStarted(ctx, s)
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	start := time.Now()

	queue := pipeline.Generate(ctx, e.queueFactory(s.FetchSize), func(ctx context.Context, push pipeline.Emit[ReadResult]) error {
		return e.fetch(ctx, s, push)
	})
	defer queue.Close()

	for {
		res, err := queue.Next(ctx)
		if pipeline.IsEOF(err) {
			break
		}
		if err != nil {
			var failure *queryFailure
			if !errors.As(err, &failure) {
				e.listener.OnExecutionFailed(ctx, s, err, time.Since(start))
				return err
			}
			e.listener.OnExecutionFailed(ctx, s, failure.err, time.Since(start))
			execErr := &ExecutionError{Statement: s, Err: failure.err}
			if e.failFast {
				return execErr
			}
			return emit(ReadResult{Statement: s, Err: execErr})
		}
		if err := emit(res); err != nil {
			e.listener.OnExecutionFailed(ctx, s, err, time.Since(start))
			return err
		}
	}
	e.listener.OnExecutionSucceeded(ctx, s, time.Since(start))
	return nil
}

// fetch pushes the rows of s into the query's queue.
func (e *Executor) fetch(ctx context.Context, s *statement.Bound, push pipeline.Emit[ReadResult]) error {
	rows, err := e.session.Query(ctx, s)
	if err != nil {
		return &queryFailure{err: err}
	}
	defer rows.Close()

	columns := rows.Columns()
	var position int64
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return &queryFailure{err: err}
		}
		position++
		e.listener.OnRowReceived(ctx, s)
		if err := push(ReadResult{Statement: s, Row: &Row{Columns: columns, Values: values}, Position: position}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &queryFailure{err: err}
	}
	return nil
}
