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
	"fmt"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// ExecutionError is a failure reported for one dispatched request. For a
// batch, every child statement shares the failure.
type ExecutionError struct {
	Statement statement.Statement
	Err       error
}

var summaryFormatter = statement.Formatter{Verbosity: statement.Abridged, MaxQueryLength: 500}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("Statement execution failed: %s (%v)", summarize(e.Statement), e.Err)
}

func summarize(s statement.Statement) string {
	if b, ok := s.(*statement.Batch); ok {
		return fmt.Sprintf("%s BATCH of %d statements", b.Type, b.Len())
	}
	return summaryFormatter.Format(s)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// WriteResult is the outcome of one write request.
type WriteResult struct {
	Statement statement.Statement
	Info      ExecInfo
	Elapsed   time.Duration
	// Err is an *ExecutionError when the request failed.
	Err error
}

func (r WriteResult) Success() bool { return r.Err == nil }

// Row is one row returned by a read.
type Row struct {
	Columns []string
	Values  []any
}

// ReadResult is either one row of a read or the failure of that read.
type ReadResult struct {
	Statement *statement.Bound
	Row       *Row
	// Position is the 1-based index of the row within its query.
	Position int64
	// Err is an *ExecutionError when the read failed.
	Err error
}

func (r ReadResult) Success() bool { return r.Err == nil }
