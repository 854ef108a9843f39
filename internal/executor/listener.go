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
	"time"

	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Listener observes request execution. Callbacks run on the request's
// goroutine and must not block.
type Listener interface {
	OnExecutionStarted(ctx context.Context, s statement.Statement)
	OnExecutionSucceeded(ctx context.Context, s statement.Statement, elapsed time.Duration)
	OnExecutionFailed(ctx context.Context, s statement.Statement, err error, elapsed time.Duration)
	OnRowReceived(ctx context.Context, s *statement.Bound)
}

type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnExecutionStarted(context.Context, statement.Statement)                      {}
func (NopListener) OnExecutionSucceeded(context.Context, statement.Statement, time.Duration)     {}
func (NopListener) OnExecutionFailed(context.Context, statement.Statement, error, time.Duration) {}
func (NopListener) OnRowReceived(context.Context, *statement.Bound)                              {}

// MultiListener fans every callback out to each listener in order.
type MultiListener []Listener

var _ Listener = MultiListener(nil)

func (m MultiListener) OnExecutionStarted(ctx context.Context, s statement.Statement) {
	for _, l := range m {
		l.OnExecutionStarted(ctx, s)
	}
}

func (m MultiListener) OnExecutionSucceeded(ctx context.Context, s statement.Statement, elapsed time.Duration) {
	for _, l := range m {
		l.OnExecutionSucceeded(ctx, s, elapsed)
	}
}

func (m MultiListener) OnExecutionFailed(ctx context.Context, s statement.Statement, err error, elapsed time.Duration) {
	for _, l := range m {
		l.OnExecutionFailed(ctx, s, err, elapsed)
	}
}

func (m MultiListener) OnRowReceived(ctx context.Context, s *statement.Bound) {
	for _, l := range m {
		l.OnRowReceived(ctx, s)
	}
}
