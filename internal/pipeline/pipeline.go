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

// Package pipeline provides pull-based streams with a single terminal signal.
//
// A consumer drives the stream by calling Next. A consumer that stops calling
// Next applies backpressure all the way to the source. Next returns io.EOF when
// the stream completes normally; any other error is a terminal failure. Once a
// terminal signal has been returned, every later call returns the same signal.
package pipeline

import (
	"context"
	"errors"
	"io"
)

// Reader is a pull-based iterator over values of type T.
type Reader[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// terminal remembers the first terminal signal returned by a reader.
type terminal struct {
	err error
}

func (t *terminal) done() bool { return t.err != nil }

func (t *terminal) finish(err error) error {
	if t.err == nil {
		t.err = err
	}
	return t.err
}

// IsEOF reports whether err is the normal end-of-stream signal.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// Drain consumes r until it terminates and returns the number of values
// consumed. A normal end of stream yields a nil error. The reader is closed.
func Drain[T any](ctx context.Context, r Reader[T]) (int64, error) {
	defer r.Close()
	var n int64
	for {
		if _, err := r.Next(ctx); err != nil {
			if IsEOF(err) {
				return n, nil
			}
			return n, err
		}
		n++
	}
}

// Collect consumes r and returns every value in stream order. On a terminal
// failure the values received so far are returned along with the error.
func Collect[T any](ctx context.Context, r Reader[T]) ([]T, error) {
	defer r.Close()
	var out []T
	for {
		v, err := r.Next(ctx)
		if err != nil {
			if IsEOF(err) {
				return out, nil
			}
			return out, err
		}
		out = append(out, v)
	}
}
