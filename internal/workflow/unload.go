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
	"sync/atomic"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/connector"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/logmanager"
	"github.com/cardinalhq/bulkrunner/internal/mapping"
	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
)

// Unload reads a table and writes its rows through a connector.
type Unload struct {
	Mapper   *mapping.Mapper
	Executor *executor.Executor
	Logs     *logmanager.Manager
	Writer   connector.Writer
	// Splits divides the table into that many concurrent reads.
	Splits int
}

func (u *Unload) validate() error {
	switch {
	case u.Mapper == nil:
		return errors.New("unload requires a mapper")
	case u.Executor == nil:
		return errors.New("unload requires an executor")
	case u.Logs == nil:
		return errors.New("unload requires a log manager")
	case u.Writer == nil:
		return errors.New("unload requires a writer")
	}
	return nil
}

// Run executes the unload. The writer is left open.
func (u *Unload) Run(ctx context.Context) Summary {
	start := time.Now()
	summary := Summary{Operation: "unload"}
	if err := u.validate(); err != nil {
		return finish(ctx, summary, u.Logs, start, err)
	}

	var rows atomic.Int64
	reads := pipeline.FromSlice(u.Mapper.SelectStatements(max(1, u.Splits))...)
	results := u.Logs.ReadErrors(u.Executor.ReadAll(ctx, reads))
	records := u.Logs.ResultMappingErrors(pipeline.Map(results, func(_ context.Context, res executor.ReadResult) (*record.Record, error) {
		rows.Add(1)
		return u.Mapper.Unmap(res), nil
	}))

	written, err := connector.WriteAll(ctx, u.Writer, records)
	summary.Records = written
	summary.Rows = rows.Load()
	return finish(ctx, summary, u.Logs, start, err)
}
