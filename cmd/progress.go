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

package cmd

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// progressListener counts executor activity for periodic progress lines.
type progressListener struct {
	executor.NopListener
	succeeded atomic.Int64
	failed    atomic.Int64
	rows      atomic.Int64
}

func (p *progressListener) OnExecutionSucceeded(_ context.Context, s statement.Statement, _ time.Duration) {
	p.succeeded.Add(int64(statement.Len(s)))
}

func (p *progressListener) OnExecutionFailed(_ context.Context, s statement.Statement, _ error, _ time.Duration) {
	p.failed.Add(int64(statement.Len(s)))
}

func (p *progressListener) OnRowReceived(context.Context, *statement.Bound) {
	p.rows.Add(1)
}

// start logs progress every interval until the returned stop function is
// called or ctx is done.
func (p *progressListener) start(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logctx.FromContext(ctx).Info("Progress",
					slog.Int64("statements", p.succeeded.Load()),
					slog.Int64("failedStatements", p.failed.Load()),
					slog.Int64("rows", p.rows.Load()))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
