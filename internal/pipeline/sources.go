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

package pipeline

import (
	"context"
	"io"
	"sync"
)

// SliceSource yields the elements of a slice in order.
type SliceSource[T any] struct {
	data   []T
	pos    int
	closed bool
}

var _ Reader[int] = (*SliceSource[int])(nil)

// FromSlice returns a reader over items. The slice is not copied.
func FromSlice[T any](items ...T) *SliceSource[T] {
	return &SliceSource[T]{data: items}
}

func (s *SliceSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if s.closed || s.pos >= len(s.data) {
		return zero, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	v := s.data[s.pos]
	s.pos++
	return v, nil
}

func (s *SliceSource[T]) Close() error {
	s.closed = true
	return nil
}

// Emit hands one value to the consumer of a generated stream. It blocks while
// the consumer is not ready and returns an error once the stream is cancelled.
type Emit[T any] func(T) error

// Generated is a reader fed by a producer goroutine through a bounded buffer.
type Generated[T any] struct {
	items  chan T
	done   chan struct{}
	cancel context.CancelFunc
	err    error // written by the producer before done is closed
	term   terminal
	once   sync.Once
}

var _ Reader[int] = (*Generated[int])(nil)

// Generate runs produce in its own goroutine and exposes what it emits as a
// Reader. At most buffer values are queued ahead of the consumer. The value
// returned by produce becomes the terminal signal once the queue is drained:
// nil means a normal end of stream.
func Generate[T any](ctx context.Context, buffer int, produce func(ctx context.Context, emit Emit[T]) error) *Generated[T] {
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	g := &Generated[T]{
		items:  make(chan T, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	emit := func(v T) error {
		select {
		case g.items <- v:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
	go func() {
		defer close(g.done)
		defer close(g.items)
		g.err = produce(ctx, emit)
	}()
	return g
}

func (g *Generated[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if g.term.done() {
		return zero, g.term.err
	}
	select {
	case v, ok := <-g.items:
		if ok {
			return v, nil
		}
		<-g.done
		if g.err != nil {
			return zero, g.term.finish(g.err)
		}
		return zero, g.term.finish(io.EOF)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close cancels the producer and waits for it to exit.
func (g *Generated[T]) Close() error {
	g.once.Do(func() {
		g.cancel()
		for range g.items {
		}
		<-g.done
	})
	return nil
}
