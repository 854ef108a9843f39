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

// Package executor dispatches statements to a database session under bounded
// concurrency and rate.
//
// Every request acquires one in-flight permit and, when a rate is set, tokens
// for each statement it carries. The permit is released exactly once whatever
// the outcome. In fail-fast mode the first failure cancels outstanding work
// and ends the stream with that failure; in best-effort mode failures are
// delivered as results and the stream continues.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Session executes single requests. Implementations must honor context
// cancellation.
type Session interface {
	// Exec runs a *statement.Bound or *statement.Batch.
	Exec(ctx context.Context, s statement.Statement) (ExecInfo, error)
	// Query starts a read. The returned rows are closed by the caller.
	Query(ctx context.Context, s *statement.Bound) (Rows, error)
}

// ExecInfo is what the session reports for a successful write.
type ExecInfo struct {
	RowsAffected int64
}

// Rows iterates over the result of a read.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Columns() []string
	Err() error
	Close()
}

var (
	ErrClosed = errors.New("executor is closed")
)

const (
	DefaultShutdownTimeout = time.Minute
	DefaultFetchSize       = 5000
)

// QueueFactory returns how many read results may be buffered ahead of the
// consumer for a query with the given fetch size.
type QueueFactory func(fetchSize int) int

// DefaultQueueFactory buffers four pages.
func DefaultQueueFactory(fetchSize int) int {
	if fetchSize <= 0 {
		fetchSize = DefaultFetchSize
	}
	return fetchSize * 4
}

// Executor is safe for concurrent use.
type Executor struct {
	session         Session
	failFast        bool
	maxInFlight     int64
	maxPerSecond    float64
	permits         *semaphore.Weighted
	limiter         *rate.Limiter
	listener        Listener
	runner          Runner
	queueFactory    QueueFactory
	shutdownTimeout time.Duration

	inFlight atomic.Int64

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup

	closeOnce sync.Once
}

type Option func(*Executor)

// WithFailFast selects fail-fast (true, the default) or best-effort mode.
func WithFailFast(failFast bool) Option {
	return func(e *Executor) { e.failFast = failFast }
}

// WithMaxInFlight caps the number of outstanding requests.
func WithMaxInFlight(n int) Option {
	return func(e *Executor) { e.maxInFlight = int64(n) }
}

// WithMaxPerSecond caps the number of statements admitted per second.
func WithMaxPerSecond(r float64) Option {
	return func(e *Executor) { e.maxPerSecond = r }
}

func WithListener(l Listener) Option {
	return func(e *Executor) { e.listener = l }
}

// WithRunner runs requests on r instead of one goroutine each.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

func WithQueueFactory(f QueueFactory) Option {
	return func(e *Executor) { e.queueFactory = f }
}

// WithShutdownTimeout bounds how long Close waits for outstanding requests
// before cancelling them.
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *Executor) { e.shutdownTimeout = d }
}

// New returns an executor over session. Limits that are not set are
// unlimited.
func New(session Session, opts ...Option) (*Executor, error) {
	if session == nil {
		return nil, errors.New("executor requires a session")
	}
	e := &Executor{
		session:         session,
		failFast:        true,
		listener:        NopListener{},
		runner:          goRunner{},
		queueFactory:    DefaultQueueFactory,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxInFlight < 0 {
		return nil, fmt.Errorf("max in-flight must be positive, got %d", e.maxInFlight)
	}
	if e.maxPerSecond < 0 {
		return nil, fmt.Errorf("max per second must be positive, got %g", e.maxPerSecond)
	}
	if e.maxInFlight > 0 {
		e.permits = semaphore.NewWeighted(e.maxInFlight)
	}
	if e.maxPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(e.maxPerSecond), max(1, int(e.maxPerSecond)))
	}
	if e.listener == nil {
		e.listener = NopListener{}
	}
	if e.runner == nil {
		e.runner = goRunner{}
	}
	if e.queueFactory == nil {
		e.queueFactory = DefaultQueueFactory
	}
	e.ctx, e.cancel = context.WithCancelCause(context.Background())
	return e, nil
}

// FailFast reports the execution mode.
func (e *Executor) FailFast() bool { return e.failFast }

// InFlight returns the number of requests dispatched to the session and not
// yet completed.
func (e *Executor) InFlight() int64 { return e.inFlight.Load() }

// admit blocks until s may be dispatched. The returned release function is
// safe to call more than once; only the first call has an effect.
func (e *Executor) admit(ctx context.Context, s statement.Statement) (func(), error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	e.pending.Add(1)
	e.mu.RUnlock()

	if e.permits != nil {
		if err := e.permits.Acquire(ctx, 1); err != nil {
			e.pending.Done()
			return nil, fmt.Errorf("acquiring in-flight permit: %w", err)
		}
	}
	if e.limiter != nil {
		n := min(statement.Len(s), e.limiter.Burst())
		if err := e.limiter.WaitN(ctx, n); err != nil {
			if e.permits != nil {
				e.permits.Release(1)
			}
			e.pending.Done()
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if e.permits != nil {
				e.permits.Release(1)
			}
			e.pending.Done()
		})
	}, nil
}

// bind derives a context that is also cancelled when the executor closes.
func (e *Executor) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(e.ctx, func() { cancel(context.Cause(e.ctx)) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

// Close stops accepting requests, waits up to the shutdown timeout for
// outstanding ones and then cancels whatever is left. Closing twice is a
// no-op.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		done := make(chan struct{})
		go func() {
			e.pending.Wait()
			close(done)
		}()

		timer := time.NewTimer(e.shutdownTimeout)
		defer timer.Stop()
		select {
		case <-done:
			e.cancel(ErrClosed)
		case <-timer.C:
			e.cancel(fmt.Errorf("%w: outstanding requests cancelled after %s", ErrClosed, e.shutdownTimeout))
			<-done
		}
	})
	return nil
}
