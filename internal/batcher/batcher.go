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

// Package batcher merges bound statements that share a locality key into
// batches, so that each batch costs one round-trip.
//
// Batching never adds, drops or rewrites a statement: decomposing the output
// yields exactly the input. Statements are grouped as the caller asks; the
// batcher does not check that merged statements really target one partition.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

// Mode selects how the locality key is derived.
type Mode int

const (
	// ModePartitionKey groups statements with the same routing key.
	ModePartitionKey Mode = iota
	// ModeReplicaSet groups statements owned by the same set of replicas.
	ModeReplicaSet
)

func (m Mode) String() string {
	if m == ModeReplicaSet {
		return "REPLICA_SET"
	}
	return "PARTITION_KEY"
}

// ParseMode accepts PARTITION_KEY and REPLICA_SET, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PARTITION_KEY", "":
		return ModePartitionKey, nil
	case "REPLICA_SET":
		return ModeReplicaSet, nil
	}
	return ModePartitionKey, fmt.Errorf("unknown batch mode %q", s)
}

var ErrNoTopology = errors.New("replica set batching requires a topology")

// Batcher is stateless and safe for concurrent use.
type Batcher struct {
	batchType     statement.BatchType
	mode          Mode
	topology      Topology
	maxStatements int
}

type Option func(*Batcher)

func WithBatchType(t statement.BatchType) Option {
	return func(b *Batcher) { b.batchType = t }
}

func WithMode(m Mode) Option {
	return func(b *Batcher) { b.mode = m }
}

func WithTopology(t Topology) Option {
	return func(b *Batcher) { b.topology = t }
}

// WithMaxBatchStatements splits groups larger than n. Zero means no limit.
func WithMaxBatchStatements(n int) Option {
	return func(b *Batcher) { b.maxStatements = n }
}

// New returns an unlogged, partition-key batcher unless options say otherwise.
func New(opts ...Option) (*Batcher, error) {
	b := &Batcher{batchType: statement.Unlogged, mode: ModePartitionKey}
	for _, opt := range opts {
		opt(b)
	}
	if b.mode == ModeReplicaSet && b.topology == nil {
		return nil, ErrNoTopology
	}
	if b.maxStatements < 0 {
		return nil, fmt.Errorf("max batch statements must not be negative, got %d", b.maxStatements)
	}
	return b, nil
}

// LocalityKey returns the key under which s may be batched. ok is false when
// the key cannot be resolved.
func (b *Batcher) LocalityKey(s *statement.Bound) (key string, ok bool) {
	if s.RoutingKey == nil {
		return "", false
	}
	switch b.mode {
	case ModeReplicaSet:
		replicas, err := b.topology.Replicas(s.Keyspace, s.RoutingKey)
		if err != nil || replicas.Cardinality() == 0 {
			return "", false
		}
		return s.Keyspace + "\x00" + ReplicaSetID(replicas), true
	default:
		return s.Keyspace + "\x00" + string(s.RoutingKey), true
	}
}

// BatchAll merges stmts into one batch. A single statement is returned as is
// and an empty input yields nil.
func (b *Batcher) BatchAll(stmts []*statement.Bound) statement.Statement {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	children := make([]*statement.Bound, len(stmts))
	copy(children, stmts)
	return &statement.Batch{Type: b.batchType, Statements: children}
}

// BatchStream drains in and merges everything it carried into one
// statement. Batches in the input are flattened into the result.
func (b *Batcher) BatchStream(ctx context.Context, in pipeline.Reader[statement.Statement]) (statement.Statement, error) {
	all, err := pipeline.Collect(ctx, in)
	if err != nil {
		return nil, err
	}
	return b.BatchAll(Decompose(all)), nil
}

// Group partitions stmts by locality key and merges each group. Groups are
// emitted in order of their first statement; statements inside a group keep
// their input order. Statements without a key, batches and unmappable
// statements pass through on their own.
func (b *Batcher) Group(stmts []statement.Statement) []statement.Statement {
	type group struct {
		members []*statement.Bound
	}
	var order []any // *group or a pass-through statement
	groups := make(map[string]*group)
	for _, s := range stmts {
		bound, ok := s.(*statement.Bound)
		if !ok {
			order = append(order, s)
			continue
		}
		key, ok := b.LocalityKey(bound)
		if !ok {
			order = append(order, s)
			continue
		}
		g, seen := groups[key]
		if !seen {
			g = &group{}
			groups[key] = g
			order = append(order, g)
		}
		g.members = append(g.members, bound)
	}

	out := make([]statement.Statement, 0, len(order))
	for _, item := range order {
		g, ok := item.(*group)
		if !ok {
			out = append(out, item.(statement.Statement))
			continue
		}
		for _, chunk := range b.split(g.members) {
			out = append(out, b.BatchAll(chunk))
		}
	}
	return out
}

func (b *Batcher) split(members []*statement.Bound) [][]*statement.Bound {
	if b.maxStatements == 0 || len(members) <= b.maxStatements {
		return [][]*statement.Bound{members}
	}
	var chunks [][]*statement.Bound
	for len(members) > 0 {
		n := min(b.maxStatements, len(members))
		chunks = append(chunks, members[:n])
		members = members[n:]
	}
	return chunks
}

// BatchByGroupingKey reads the whole input, groups it and streams the result.
func (b *Batcher) BatchByGroupingKey(ctx context.Context, in pipeline.Reader[statement.Statement]) (pipeline.Reader[statement.Statement], error) {
	all, err := pipeline.Collect(ctx, in)
	if err != nil {
		return nil, err
	}
	return pipeline.FromSlice(b.Group(all)...), nil
}

// BatchWindows groups each consecutive window of size statements, so a
// load can stream without holding the whole input.
func (b *Batcher) BatchWindows(in pipeline.Reader[statement.Statement], size int) pipeline.Reader[statement.Statement] {
	return pipeline.FlatMap(pipeline.Window(in, size), func(_ context.Context, window []statement.Statement) ([]statement.Statement, error) {
		return b.Group(window), nil
	})
}

// Decompose returns the bound statements carried by stmts, in order.
func Decompose(stmts []statement.Statement) []*statement.Bound {
	var out []*statement.Bound
	for _, s := range stmts {
		out = append(out, statement.Children(s)...)
	}
	return out
}
