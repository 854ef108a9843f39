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

// Package logmanager records failed records and statements and enforces the
// run's error budget.
//
// Each failure category has its own detail log in the execution directory,
// created on the first failure of that category. Records whose input should
// be replayed are also appended, verbatim, to operation.bad. Failures of all
// categories share one counter; once it has reached the configured maximum,
// the next failure ends the stream with a *TooManyErrorsError and the manager
// closes.
package logmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/bulkrunner/internal/logctx"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Category identifies the stage a failure was observed in.
type Category int

const (
	RecordMapping Category = iota
	ResultMapping
	Load
	Unload
	numCategories
)

func (c Category) String() string {
	switch c {
	case RecordMapping:
		return "record-mapping"
	case ResultMapping:
		return "result-mapping"
	case Load:
		return "load"
	case Unload:
		return "unload"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// FileName is the detail log written for the category.
func (c Category) FileName() string {
	return c.String() + "-errors.log"
}

// BadFileName receives the raw input of rejected records.
const BadFileName = "operation.bad"

const DefaultMaxSourceLength = 500

// Manager is safe for concurrent use by several operators.
type Manager struct {
	dir             string
	maxErrors       int64
	formatter       statement.Formatter
	maxSourceLength int

	errors atomic.Int64
	counts [numCategories]atomic.Int64

	bad   *sink
	sinks [numCategories]*sink

	// closed is set once, by the threshold or by Close.
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Manager)

// WithMaxErrors sets the error budget. Zero or less means unlimited.
func WithMaxErrors(n int64) Option {
	return func(m *Manager) { m.maxErrors = n }
}

// WithFormatter sets how statements are rendered in detail logs.
func WithFormatter(f statement.Formatter) Option {
	return func(m *Manager) { m.formatter = f }
}

// WithMaxSourceLength truncates rendered sources. Zero means unlimited.
func WithMaxSourceLength(n int) Option {
	return func(m *Manager) { m.maxSourceLength = n }
}

// New returns a manager writing into dir, which must exist.
func New(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:             dir,
		formatter:       statement.DefaultFormatter(),
		maxSourceLength: DefaultMaxSourceLength,
		bad:             newSink(dir, BadFileName),
	}
	for _, opt := range opts {
		opt(m)
	}
	for c := range numCategories {
		m.sinks[c] = newSink(dir, c.FileName())
	}
	return m
}

// Dir is the execution directory.
func (m *Manager) Dir() string { return m.dir }

// MaxErrors returns the error budget, zero when unlimited.
func (m *Manager) MaxErrors() int64 { return max(m.maxErrors, 0) }

// Counts returns the number of logged failures per category.
func (m *Manager) Counts() map[Category]int64 {
	out := make(map[Category]int64, numCategories)
	for c := range numCategories {
		out[c] = m.counts[c].Load()
	}
	return out
}

// Total returns the number of logged failures across categories.
func (m *Manager) Total() int64 { return m.errors.Load() }

// Close flushes and closes every log file. Later failures are rejected with
// ErrClosed. Closing twice returns the first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		var result *multierror.Error
		for _, s := range m.sinks {
			if err := s.close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := m.bad.close(); err != nil {
			result = multierror.Append(result, err)
		}
		m.closeErr = result.ErrorOrNil()
	})
	return m.closeErr
}

// entry is one failed record ready to be logged.
type entry struct {
	rec  *record.Record
	stmt statement.Statement
	err  error
	// bad sends the record source to operation.bad.
	bad bool
}

// reserve accounts for n failures observed together. It fails once the
// budget was already used up before them.
func (m *Manager) reserve(n int64) error {
	for {
		cur := m.errors.Load()
		if m.maxErrors > 0 && cur >= m.maxErrors {
			m.closed.Store(true)
			return &TooManyErrorsError{MaxErrors: m.maxErrors}
		}
		if m.errors.CompareAndSwap(cur, cur+n) {
			return nil
		}
	}
}

// record logs entries observed as one failure in category c.
func (m *Manager) record(ctx context.Context, c Category, entries []entry) error {
	if len(entries) == 0 {
		return nil
	}
	if m.closed.Load() {
		if m.maxErrors > 0 && m.errors.Load() >= m.maxErrors {
			return &TooManyErrorsError{MaxErrors: m.maxErrors}
		}
		return ErrClosed
	}
	if err := m.reserve(int64(len(entries))); err != nil {
		logctx.FromContext(ctx).Error("Error budget exhausted",
			slog.String("category", c.String()),
			slog.Int64("maxErrors", m.maxErrors))
		return err
	}
	m.counts[c].Add(int64(len(entries)))
	recordErrors(ctx, c, len(entries))

	for _, e := range entries {
		if err := m.sinks[c].write(m.render(e)); err != nil {
			return err
		}
		if e.bad && e.rec != nil {
			if err := m.bad.write(badLine(e.rec.Source())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) render(e entry) string {
	var sb strings.Builder
	if e.rec != nil {
		fmt.Fprintf(&sb, "Location: %s\n", e.rec.Location())
		fmt.Fprintf(&sb, "Source  : %s\n", statement.Truncate(SingleLine(e.rec.Source()), m.maxSourceLength))
	}
	if e.stmt != nil {
		fmt.Fprintf(&sb, "Statement: %s\n", m.formatter.Format(e.stmt))
	}
	writeCause(&sb, e.err)
	sb.WriteString("\n")
	return sb.String()
}

// writeCause writes err and each error it wraps on its own line.
func writeCause(sb *strings.Builder, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(sb, "%T: %s\n", err, err)
	prev := err.Error()
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		if msg := cause.Error(); msg != prev {
			fmt.Fprintf(sb, "Caused by: %T: %s\n", cause, msg)
			prev = msg
		}
	}
}
