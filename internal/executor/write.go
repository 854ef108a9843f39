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
	"sync"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Write executes one statement and waits for the outcome. A failed request
// is returned as an error in fail-fast mode and inside the result otherwise.
// Admission failures are always returned as errors.
func (e *Executor) Write(ctx context.Context, s statement.Statement) (WriteResult, error) {
	if u, ok := s.(*statement.Unmappable); ok {
		return e.unmappable(u)
	}
	ctx, stop := e.bind(ctx)
	defer stop()
	release, err := e.admit(ctx, s)
	if err != nil {
		return WriteResult{Statement: s}, err
	}
	defer release()
	res := e.execute(ctx, s)
	if res.Err != nil && e.failFast {
		return res, res.Err
	}
	return res, nil
}

func (e *Executor) unmappable(u *statement.Unmappable) (WriteResult, error) {
	res := WriteResult{Statement: u, Err: &ExecutionError{Statement: u, Err: u.Err}}
	if e.failFast {
		return res, res.Err
	}
	return res, nil
}

// WriteAll executes every statement read from in, concurrently, and streams
// one result per statement in completion order. The input is read only as
// fast as permits become available.
func (e *Executor) WriteAll(ctx context.Context, in pipeline.Reader[statement.Statement]) pipeline.Reader[WriteResult] {
	bound, stop := e.bind(ctx)
	buffer := 0
	if e.maxInFlight > 0 {
		buffer = int(e.maxInFlight)
	}
	return pipeline.Generate(bound, buffer, func(ctx context.Context, emit pipeline.Emit[WriteResult]) error {
		defer stop()
		return dispatchAll(e, ctx, in, asStatement, func(ctx context.Context, s statement.Statement, emit pipeline.Emit[WriteResult]) error {
			if u, ok := s.(*statement.Unmappable); ok {
				res, _ := e.unmappable(u)
				return emit(res)
			}
			res := e.execute(ctx, s)
			if res.Err != nil && e.failFast {
				return res.Err
			}
			return emit(res)
		}, emit)
	})
}

func asStatement(s statement.Statement) statement.Statement { return s }

// dispatchAll runs handle for each element of in under admission control.
// A handler error ends the whole dispatch with that error; outstanding
// handlers are cancelled and waited for.
func dispatchAll[T, R any](e *Executor, ctx context.Context, in pipeline.Reader[T], stmt func(T) statement.Statement,
	handle func(ctx context.Context, v T, emit pipeline.Emit[R]) error, emit pipeline.Emit[R]) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failure  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failure = err
			cancel(err)
		})
	}

	var readErr error
	for {
		v, err := in.Next(ctx)
		if err != nil {
			if !pipeline.IsEOF(err) {
				readErr = err
			}
			break
		}
		release, err := e.admit(ctx, stmt(v))
		if err != nil {
			readErr = err
			break
		}
		wg.Add(1)
		e.runner.Go(func() {
			defer wg.Done()
			defer release()
			if err := handle(ctx, v, emit); err != nil {
				fail(err)
			}
		})
	}
	wg.Wait()
	_ = in.Close()

	if failure != nil {
		return failure
	}
	if readErr != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			return cause
		}
		return readErr
	}
	return nil
}

// execute sends one request to the session.
func (e *Executor) execute(ctx context.Context, s statement.Statement) WriteResult {
	e.listener.OnExecutionStarted(ctx, s)
	e.inFlight.Add(1)
	start := time.Now()
	info, err := e.session.Exec(ctx, s)
	elapsed := time.Since(start)
	e.inFlight.Add(-1)
	if err != nil {
		e.listener.OnExecutionFailed(ctx, s, err, elapsed)
		return WriteResult{Statement: s, Elapsed: elapsed, Err: &ExecutionError{Statement: s, Err: err}}
	}
	e.listener.OnExecutionSucceeded(ctx, s, elapsed)
	return WriteResult{Statement: s, Info: info, Elapsed: elapsed}
}
