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

package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/bulkrunner/internal/batcher"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/logmanager"
	"github.com/cardinalhq/bulkrunner/internal/mapping"
	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Load writes records into a table.
type Load struct {
	Records  pipeline.Reader[*record.Record]
	Mapper   *mapping.Mapper
	Executor *executor.Executor
	Logs     *logmanager.Manager
	// Batcher is optional; nil writes every statement on its own.
	Batcher *batcher.Batcher
	// BatchBufferSize is the number of statements grouped at a time. Zero
	// groups the whole input before writing anything.
	BatchBufferSize int
	// MappingWorkers maps records concurrently when above one. Record
	// order is then not preserved.
	MappingWorkers int
}

func (l *Load) validate() error {
	switch {
	case l.Records == nil:
		return errors.New("load requires a record source")
	case l.Mapper == nil:
		return errors.New("load requires a mapper")
	case l.Executor == nil:
		return errors.New("load requires an executor")
	case l.Logs == nil:
		return errors.New("load requires a log manager")
	}
	return nil
}

// Run executes the load and always returns a summary; Summary.Err holds the
// failure that ended it early, if any. The record source is closed.
func (l *Load) Run(ctx context.Context) Summary {
	start := time.Now()
	summary := Summary{Operation: "load"}
	if err := l.validate(); err != nil {
		if l.Records != nil {
			_ = l.Records.Close()
		}
		return finish(ctx, summary, l.Logs, start, err)
	}

	var read, executed atomic.Int64
	counted := pipeline.Map(l.Records, func(_ context.Context, rec *record.Record) (*record.Record, error) {
		read.Add(1)
		return rec, nil
	})
	stmts := l.Logs.RecordMappingErrors(l.mapRecords(ctx, counted))

	batched, err := l.batch(ctx, stmts)
	if err != nil {
		summary.Records = read.Load()
		return finish(ctx, summary, l.Logs, start, err)
	}

	results := l.Logs.WriteErrors(l.Executor.WriteAll(ctx, batched))
	err = consume(ctx, results, func(res executor.WriteResult) {
		executed.Add(int64(statement.Len(res.Statement)))
	})

	summary.Records = read.Load()
	summary.Statements = executed.Load()
	return finish(ctx, summary, l.Logs, start, err)
}

func (l *Load) mapRecords(ctx context.Context, in pipeline.Reader[*record.Record]) pipeline.Reader[statement.Statement] {
	if l.MappingWorkers <= 1 {
		return pipeline.Map(in, func(_ context.Context, rec *record.Record) (statement.Statement, error) {
			return l.Mapper.Map(rec), nil
		})
	}
	return pipeline.Generate(ctx, l.MappingWorkers, func(ctx context.Context, emit pipeline.Emit[statement.Statement]) error {
		defer in.Close()
		var mu sync.Mutex
		next := func() (*record.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			return in.Next(ctx)
		}
		g, ctx := errgroup.WithContext(ctx)
		for range l.MappingWorkers {
			g.Go(func() error {
				for {
					rec, err := next()
					if err != nil {
						if pipeline.IsEOF(err) {
							return nil
						}
						return err
					}
					if err := emit(l.Mapper.Map(rec)); err != nil {
						return err
					}
				}
			})
		}
		return g.Wait()
	})
}

func (l *Load) batch(ctx context.Context, in pipeline.Reader[statement.Statement]) (pipeline.Reader[statement.Statement], error) {
	switch {
	case l.Batcher == nil:
		return in, nil
	case l.BatchBufferSize > 0:
		return l.Batcher.BatchWindows(in, l.BatchBufferSize), nil
	default:
		return l.Batcher.BatchByGroupingKey(ctx, in)
	}
}

// consume reads r to the end, handing every value to fn, and closes it.
func consume[T any](ctx context.Context, r pipeline.Reader[T], fn func(T)) error {
	defer r.Close()
	for {
		v, err := r.Next(ctx)
		if err != nil {
			if pipeline.IsEOF(err) {
				return nil
			}
			return err
		}
		fn(v)
	}
}
