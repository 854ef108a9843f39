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

// Package workflow runs load and unload operations end to end: records flow
// from a connector through the mapper, the batcher and the executor, with
// every failure routed to the log manager.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/logmanager"
)

// ExitStatus is the outcome of an operation. Its value is the process exit
// code.
type ExitStatus int

const (
	OK ExitStatus = iota
	CompletedWithErrors
	AbortedTooManyErrors
	AbortedFatalError
	Interrupted
)

var exitStatusNames = map[ExitStatus]string{
	OK:                   "OK",
	CompletedWithErrors:  "COMPLETED_WITH_ERRORS",
	AbortedTooManyErrors: "ABORTED_TOO_MANY_ERRORS",
	AbortedFatalError:    "ABORTED_FATAL_ERROR",
	Interrupted:          "INTERRUPTED",
}

func (s ExitStatus) String() string {
	if name, ok := exitStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s ExitStatus) Code() int { return int(s) }

// StatusOf classifies how an operation ended. failures is the number of
// failures logged while it ran.
func StatusOf(ctx context.Context, err error, failures int64) ExitStatus {
	var tooMany *logmanager.TooManyErrorsError
	switch {
	case err == nil && failures == 0:
		return OK
	case err == nil:
		return CompletedWithErrors
	case errors.As(err, &tooMany):
		return AbortedTooManyErrors
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return Interrupted
	default:
		return AbortedFatalError
	}
}

// Summary reports what an operation did.
type Summary struct {
	Operation string
	// Records is the number of records read from the connector on a load,
	// and written to it on an unload.
	Records int64
	// Statements counts bound statements executed successfully.
	Statements int64
	// Rows counts rows received from the database.
	Rows     int64
	Failures map[logmanager.Category]int64
	Elapsed  time.Duration
	Status   ExitStatus
	Err      error
}

// TotalFailures sums the failures of every category.
func (s Summary) TotalFailures() int64 {
	var n int64
	for _, c := range s.Failures {
		n += c
	}
	return n
}

func finish(ctx context.Context, s Summary, logs *logmanager.Manager, start time.Time, err error) Summary {
	if logs != nil {
		s.Failures = logs.Counts()
	}
	s.Elapsed = time.Since(start)
	s.Err = err
	s.Status = StatusOf(ctx, err, s.TotalFailures())

	attrs := []any{
		slog.String("status", s.Status.String()),
		slog.Int64("records", s.Records),
		slog.Int64("statements", s.Statements),
		slog.Int64("rows", s.Rows),
		slog.Int64("failures", s.TotalFailures()),
		slog.Duration("elapsed", s.Elapsed),
	}
	logger := logctx.FromContext(ctx)
	switch s.Status {
	case OK:
		logger.Info("Operation completed successfully", attrs...)
	case CompletedWithErrors:
		logger.Warn("Operation completed with errors", append(attrs, slog.String("logDirectory", logs.Dir()))...)
	default:
		logger.Error("Operation aborted", append(attrs, slog.Any("error", err))...)
	}
	return s
}
