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
	"errors"
	"io"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceSource(t *testing.T) {
	ctx := context.Background()
	got, err := Collect[int](ctx, FromSlice(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	s := FromSlice(1)
	require.NoError(t, s.Close())
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMapFilterFlatMap(t *testing.T) {
	ctx := context.Background()
	src := FromSlice(1, 2, 3, 4)
	even := Filter[int](src, func(v int) bool { return v%2 == 0 })
	doubled := FlatMap[int, int](even, func(_ context.Context, v int) ([]int, error) {
		return []int{v, v}, nil
	})
	str := Map[int, string](doubled, func(_ context.Context, v int) (string, error) {
		return strconv.Itoa(v), nil
	})
	got, err := Collect[string](ctx, str)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "2", "4", "4"}, got)
}

func TestFlatMapSkipsEmptyExpansions(t *testing.T) {
	r := FlatMap[int, int](FromSlice(1, 2, 3), func(_ context.Context, v int) ([]int, error) {
		if v == 2 {
			return []int{20, 21}, nil
		}
		return nil, nil
	})
	got, err := Collect[int](context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21}, got)
}

func TestMapErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	r := Map[int, int](FromSlice(1, 2, 3), func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	ctx := context.Background()
	v, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, boom, "terminal signal must repeat")
}

func TestConcat(t *testing.T) {
	r := Concat[int](FromSlice(1, 2), FromSlice[int](), FromSlice(3))
	got, err := Collect[int](context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		size int
		want [][]int
	}{
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"partial tail", []int{1, 2, 3}, 2, [][]int{{1, 2}, {3}}},
		{"empty", nil, 3, nil},
		{"size clamp", []int{1, 2}, 0, [][]int{{1}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect[[]int](context.Background(), Window[int](FromSlice(tt.in...), tt.size))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	r := Generate[int](ctx, 2, func(ctx context.Context, emit Emit[int]) error {
		for i := 0; i < 5; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	})
	got, err := Collect[int](ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestGenerateTerminalError(t *testing.T) {
	boom := errors.New("producer failed")
	r := Generate[int](context.Background(), 0, func(ctx context.Context, emit Emit[int]) error {
		if err := emit(1); err != nil {
			return err
		}
		return boom
	})
	got, err := Collect[int](context.Background(), r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, got)
}

func TestGenerateBackpressure(t *testing.T) {
	var produced atomic.Int64
	r := Generate[int](context.Background(), 1, func(ctx context.Context, emit Emit[int]) error {
		for i := 0; ; i++ {
			if err := emit(i); err != nil {
				return err
			}
			produced.Add(1)
		}
	})
	time.Sleep(50 * time.Millisecond)
	// One value in the buffer, one blocked in emit.
	assert.LessOrEqual(t, produced.Load(), int64(2))
	require.NoError(t, r.Close())
}

func TestFromChannel(t *testing.T) {
	ch := make(chan string, 2)
	ch <- "a"
	ch <- "b"
	close(ch)
	got, err := Collect(context.Background(), FromChannel(ch))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDrain(t *testing.T) {
	n, err := Drain[int](context.Background(), FromSlice(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
