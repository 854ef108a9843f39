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

	"github.com/hashicorp/go-multierror"
)

// MapReader applies fn to every element, 1→1. An error from fn terminates
// the stream.
type MapReader[T, U any] struct {
	in   Reader[T]
	fn   func(context.Context, T) (U, error)
	term terminal
}

func Map[T, U any](in Reader[T], fn func(context.Context, T) (U, error)) *MapReader[T, U] {
	return &MapReader[T, U]{in: in, fn: fn}
}

func (m *MapReader[T, U]) Next(ctx context.Context) (U, error) {
	var zero U
	if m.term.done() {
		return zero, m.term.err
	}
	v, err := m.in.Next(ctx)
	if err != nil {
		return zero, m.term.finish(err)
	}
	out, err := m.fn(ctx, v)
	if err != nil {
		return zero, m.term.finish(err)
	}
	return out, nil
}

func (m *MapReader[T, U]) Close() error { return m.in.Close() }

// FilterReader keeps elements for which pred returns true.
type FilterReader[T any] struct {
	in   Reader[T]
	pred func(T) bool
}

func Filter[T any](in Reader[T], pred func(T) bool) *FilterReader[T] {
	return &FilterReader[T]{in: in, pred: pred}
}

func (f *FilterReader[T]) Next(ctx context.Context) (T, error) {
	for {
		v, err := f.in.Next(ctx)
		if err != nil {
			return v, err
		}
		if f.pred(v) {
			return v, nil
		}
	}
}

func (f *FilterReader[T]) Close() error { return f.in.Close() }

// FlatMapReader expands every element into zero or more outputs, 1→N.
type FlatMapReader[T, U any] struct {
	in      Reader[T]
	fn      func(context.Context, T) ([]U, error)
	pending []U
	term    terminal
}

func FlatMap[T, U any](in Reader[T], fn func(context.Context, T) ([]U, error)) *FlatMapReader[T, U] {
	return &FlatMapReader[T, U]{in: in, fn: fn}
}

func (f *FlatMapReader[T, U]) Next(ctx context.Context) (U, error) {
	var zero U
	for len(f.pending) == 0 {
		if f.term.done() {
			return zero, f.term.err
		}
		v, err := f.in.Next(ctx)
		if err != nil {
			return zero, f.term.finish(err)
		}
		out, err := f.fn(ctx, v)
		if err != nil {
			return zero, f.term.finish(err)
		}
		f.pending = out
	}
	v := f.pending[0]
	f.pending[0] = zero
	f.pending = f.pending[1:]
	return v, nil
}

func (f *FlatMapReader[T, U]) Close() error { return f.in.Close() }

// SequentialReader reads each of its readers to the end, in order.
type SequentialReader[T any] struct {
	readers []Reader[T]
	current int
}

// Concat returns a reader that yields everything from readers[0], then
// readers[1], and so on.
func Concat[T any](readers ...Reader[T]) *SequentialReader[T] {
	return &SequentialReader[T]{readers: readers}
}

func (s *SequentialReader[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for s.current < len(s.readers) {
		v, err := s.readers[s.current].Next(ctx)
		if err == nil {
			return v, nil
		}
		if !IsEOF(err) {
			return zero, err
		}
		s.current++
	}
	return zero, io.EOF
}

func (s *SequentialReader[T]) Close() error {
	var errs *multierror.Error
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// WindowReader groups consecutive elements into slices of at most size.
type WindowReader[T any] struct {
	in   Reader[T]
	size int
	term terminal
}

// Window groups the stream into consecutive windows. The last window may be
// shorter. A size below one is treated as one.
func Window[T any](in Reader[T], size int) *WindowReader[T] {
	if size < 1 {
		size = 1
	}
	return &WindowReader[T]{in: in, size: size}
}

func (w *WindowReader[T]) Next(ctx context.Context) ([]T, error) {
	if w.term.done() {
		return nil, w.term.err
	}
	out := make([]T, 0, w.size)
	for len(out) < w.size {
		v, err := w.in.Next(ctx)
		if err != nil {
			// Deliver the partial window first; the signal follows on the next call.
			w.term.finish(err)
			if len(out) > 0 && IsEOF(err) {
				return out, nil
			}
			return nil, w.term.err
		}
		out = append(out, v)
	}
	return out, nil
}

func (w *WindowReader[T]) Close() error { return w.in.Close() }

// FromChannel reads from ch until it is closed.
func FromChannel[T any](ch <-chan T) Reader[T] {
	return &chanReader[T]{ch: ch}
}

type chanReader[T any] struct {
	ch <-chan T
}

func (c *chanReader[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-c.ch:
		if !ok {
			return zero, io.EOF
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *chanReader[T]) Close() error { return nil }
