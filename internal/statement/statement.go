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

// Package statement defines the database operations produced from records.
package statement

import (
	"fmt"
	"strings"

	"github.com/cardinalhq/bulkrunner/internal/record"
)

// Statement is one submittable operation. The set of implementations is
// closed: *Bound, *Batch and *Unmappable.
type Statement interface {
	isStatement()
}

// Bound is one record mapped into one database operation.
type Bound struct {
	// Record is the originating record, kept for diagnostics.
	Record *record.Record

	Keyspace string
	Table    string
	Query    string
	// Columns names the bind variables, one per value.
	Columns []string
	Values  []any

	// RoutingKey identifies the data partition. Nil when it cannot be resolved.
	RoutingKey []byte

	// FetchSize is the page size for reads. Zero uses the driver default.
	FetchSize  int
	Idempotent bool
}

// BatchType selects the atomicity guarantee of a batch.
type BatchType int

const (
	Unlogged BatchType = iota
	Logged
)

func (t BatchType) String() string {
	switch t {
	case Logged:
		return "LOGGED"
	default:
		return "UNLOGGED"
	}
}

// Batch merges several bound statements into one round-trip.
type Batch struct {
	Type       BatchType
	Statements []*Bound
}

// Len returns the number of statements in the batch.
func (b *Batch) Len() int { return len(b.Statements) }

// Unmappable stands in for a record that could not be mapped. It is never
// executed.
type Unmappable struct {
	Record *record.Record
	Err    error
}

func (*Bound) isStatement()      {}
func (*Batch) isStatement()      {}
func (*Unmappable) isStatement() {}

// Records returns the records a statement originates from. A batch yields
// the records of its children in batch order.
func Records(s Statement) []*record.Record {
	switch st := s.(type) {
	case *Bound:
		return []*record.Record{st.Record}
	case *Batch:
		out := make([]*record.Record, 0, len(st.Statements))
		for _, child := range st.Statements {
			out = append(out, child.Record)
		}
		return out
	case *Unmappable:
		return []*record.Record{st.Record}
	default:
		return nil
	}
}

// Children returns the bound statements making up s, in order.
func Children(s Statement) []*Bound {
	switch st := s.(type) {
	case *Bound:
		return []*Bound{st}
	case *Batch:
		return st.Statements
	default:
		return nil
	}
}

// Len returns the number of underlying operations in s.
func Len(s Statement) int {
	if b, ok := s.(*Batch); ok {
		return b.Len()
	}
	return 1
}

// ParseBatchType accepts LOGGED and UNLOGGED, case-insensitively.
func ParseBatchType(s string) (BatchType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNLOGGED", "":
		return Unlogged, nil
	case "LOGGED":
		return Logged, nil
	}
	return Unlogged, fmt.Errorf("unknown batch type %q", s)
}
