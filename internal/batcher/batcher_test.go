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

package batcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

func bound(id int, key string) *statement.Bound {
	loc := fmt.Sprintf("file:///in.csv?line=%d", id)
	s := &statement.Bound{
		Record:   record.New(fmt.Sprint(id), loc, nil),
		Keyspace: "ks",
		Query:    "INSERT INTO ks.t (pk, v) VALUES ($1, $2)",
		Values:   []any{key, id},
	}
	if key != "" {
		s.RoutingKey = []byte(key)
	}
	return s
}

func TestBatchAllUnwrapsSingleton(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	s := bound(1, "a")
	assert.Same(t, s, b.BatchAll([]*statement.Bound{s}))
	assert.Nil(t, b.BatchAll(nil))

	merged := b.BatchAll([]*statement.Bound{bound(1, "a"), bound(2, "b")})
	batch, ok := merged.(*statement.Batch)
	require.True(t, ok)
	assert.Equal(t, statement.Unlogged, batch.Type)
	assert.Equal(t, 2, batch.Len())
}

func TestGroupByPartitionKey(t *testing.T) {
	b, err := New(WithBatchType(statement.Logged))
	require.NoError(t, err)

	in := []statement.Statement{
		bound(1, "a"), bound(2, "b"), bound(3, "a"), bound(4, ""), bound(5, "c"), bound(6, "a"),
	}
	out := b.Group(in)
	require.Len(t, out, 4)

	first, ok := out[0].(*statement.Batch)
	require.True(t, ok)
	assert.Equal(t, statement.Logged, first.Type)
	assert.Equal(t, []*statement.Bound{in[0].(*statement.Bound), in[2].(*statement.Bound), in[5].(*statement.Bound)}, first.Statements)

	assert.Same(t, in[1], out[1], "lone key is not wrapped")
	assert.Same(t, in[3], out[2], "unkeyed statement passes through")
	assert.Same(t, in[4], out[3])
}

func TestGroupIsLossless(t *testing.T) {
	b, err := New(WithMaxBatchStatements(3))
	require.NoError(t, err)

	var in []statement.Statement
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", i%7)
		if i%11 == 0 {
			key = ""
		}
		in = append(in, bound(i, key))
	}
	in = append(in, &statement.Unmappable{Record: record.New("x", "loc", nil), Err: errors.New("bad")})

	out := b.Group(in)
	for _, s := range out {
		if batch, ok := s.(*statement.Batch); ok {
			assert.GreaterOrEqual(t, batch.Len(), 2, "no one-element batches")
			assert.LessOrEqual(t, batch.Len(), 3)
		}
	}

	want := mapset.NewSet[*statement.Bound]()
	for _, s := range in {
		want.Append(statement.Children(s)...)
	}
	got := Decompose(out)
	assert.Len(t, got, want.Cardinality())
	assert.True(t, want.Equal(mapset.NewSet(got...)))
}

func TestGroupKeepsOrderWithinKey(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	in := []statement.Statement{bound(1, "a"), bound(2, "b"), bound(3, "a"), bound(4, "b"), bound(5, "a")}
	for _, s := range b.Group(in) {
		batch := s.(*statement.Batch)
		prev := -1
		for _, child := range batch.Statements {
			id := child.Values[1].(int)
			assert.Greater(t, id, prev)
			prev = id
		}
	}
}

type fixedTopology map[string][]string

func (f fixedTopology) Replicas(_ string, key []byte) (mapset.Set[string], error) {
	hosts, ok := f[string(key)]
	if !ok {
		return nil, ErrNoReplicas
	}
	return mapset.NewSet(hosts...), nil
}

func TestGroupByReplicaSet(t *testing.T) {
	_, err := New(WithMode(ModeReplicaSet))
	require.ErrorIs(t, err, ErrNoTopology)

	topo := fixedTopology{
		"a": {"h1", "h2"},
		"b": {"h2", "h1"},
		"c": {"h3", "h1"},
	}
	b, err := New(WithMode(ModeReplicaSet), WithTopology(topo))
	require.NoError(t, err)

	out := b.Group([]statement.Statement{bound(1, "a"), bound(2, "c"), bound(3, "b"), bound(4, "zzz")})
	require.Len(t, out, 3)
	batch, ok := out[0].(*statement.Batch)
	require.True(t, ok, "a and b share replicas")
	assert.Equal(t, 2, batch.Len())
	assert.IsType(t, &statement.Bound{}, out[1])
	assert.IsType(t, &statement.Bound{}, out[2], "lookup failure leaves the statement unbatched")
}

func TestBatchByGroupingKeyStream(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	in := pipeline.FromSlice[statement.Statement](bound(1, "a"), bound(2, "a"), bound(3, "b"))
	r, err := b.BatchByGroupingKey(ctx, in)
	require.NoError(t, err)
	out, err := pipeline.Collect(ctx, r)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, statement.Len(out[0]))
	assert.Equal(t, 1, statement.Len(out[1]))
}

func TestBatchStream(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	one := bound(1, "a")
	got, err := b.BatchStream(ctx, pipeline.FromSlice[statement.Statement](one))
	require.NoError(t, err)
	assert.Same(t, one, got)

	nested := &statement.Batch{Type: statement.Logged, Statements: []*statement.Bound{bound(2, "a"), bound(3, "a")}}
	got, err = b.BatchStream(ctx, pipeline.FromSlice[statement.Statement](bound(4, "b"), nested))
	require.NoError(t, err)
	batch, ok := got.(*statement.Batch)
	require.True(t, ok)
	assert.Equal(t, statement.Unlogged, batch.Type)
	assert.Equal(t, 3, batch.Len())

	got, err = b.BatchStream(ctx, pipeline.FromSlice[statement.Statement]())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBatchWindows(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	in := pipeline.FromSlice[statement.Statement](bound(1, "a"), bound(2, "a"), bound(3, "a"), bound(4, "a"), bound(5, "a"))
	out, err := pipeline.Collect(context.Background(), b.BatchWindows(in, 2))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 2, statement.Len(out[0]))
	assert.Equal(t, 2, statement.Len(out[1]))
	assert.Equal(t, 1, statement.Len(out[2]))
}

func TestRendezvousTopology(t *testing.T) {
	topo := NewRendezvousTopology([]string{"h1", "h2", "h3", "h4"}, 2)
	seen := mapset.NewSet[string]()
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		a, err := topo.Replicas("ks", key)
		require.NoError(t, err)
		assert.Equal(t, 2, a.Cardinality())
		b, err := topo.Replicas("ks", key)
		require.NoError(t, err)
		assert.Equal(t, ReplicaSetID(a), ReplicaSetID(b), "placement is stable")
		seen.Add(ReplicaSetID(a))
	}
	assert.Greater(t, seen.Cardinality(), 1, "keys spread over several replica sets")

	_, err := NewRendezvousTopology(nil, 3).Replicas("ks", []byte("k"))
	assert.ErrorIs(t, err, ErrNoReplicas)
	clamped := NewRendezvousTopology([]string{"h1"}, 5)
	set, err := clamped.Replicas("ks", []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "h1", ReplicaSetID(set))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("replica_set")
	require.NoError(t, err)
	assert.Equal(t, ModeReplicaSet, m)
	_, err = ParseMode("token")
	assert.Error(t, err)
}
