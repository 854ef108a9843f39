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

package mapping

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bulkrunner/internal/codec"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

func testMapping(t *testing.T) Mapping {
	t.Helper()
	cfg := Config{
		Keyspace: "ks",
		Table:    "events",
		Mapping:  "id = pk, when = ts, amount = amount",
	}
	table := []Column{
		{Name: "pk", Type: codec.BigInt},
		{Name: "ts", Type: codec.Timestamp},
		{Name: "amount", Type: codec.Decimal},
		{Name: "ignored", Type: codec.Text},
	}
	m, err := cfg.Build(table, []string{"pk"})
	require.NoError(t, err)
	return m
}

func newMapper(t *testing.T, opts ...Option) *Mapper {
	t.Helper()
	m, err := NewMapper(testMapping(t), codec.NewRegistry(), codec.DefaultSettings(), opts...)
	require.NoError(t, err)
	return m
}

func TestBuild(t *testing.T) {
	m := testMapping(t)
	require.Len(t, m.Columns, 3)
	assert.Equal(t, Column{Name: "ts", Type: codec.Timestamp, Field: "when"}, m.Columns[1])
	assert.Equal(t, []string{"pk"}, m.PartitionKey)

	_, err := Config{Table: "t", Mapping: "a = nope"}.Build([]Column{{Name: "x"}}, nil)
	assert.ErrorContains(t, err, "nope")
	_, err = Config{Table: "t", PartitionKey: []string{"y"}}.Build([]Column{{Name: "x"}}, nil)
	assert.Error(t, err)
	_, err = Config{Table: "t", Mapping: "a = x, b = x"}.Build([]Column{{Name: "x"}}, nil)
	assert.Error(t, err)

	declared, err := Config{Table: "t", Columns: []string{"a:int", "b: varchar"}}.Build(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "a", Type: codec.Int, Field: "a"}, {Name: "b", Type: codec.Text, Field: "b"}}, declared.Columns)
	_, err = ParseColumns([]string{"broken"})
	assert.Error(t, err)
}

func TestMapCSVRecord(t *testing.T) {
	m := newMapper(t)
	rec := record.New("42,2024-01-02T03:04:05Z,\"1,234.50\"", "file:///in.csv?line=2", []record.Field{
		{Name: "id", Value: "42"},
		{Name: "when", Value: "2024-01-02T03:04:05Z"},
		{Name: "amount", Value: "1,234.50"},
	})
	s := m.Map(rec)
	b, ok := s.(*statement.Bound)
	require.True(t, ok, "%v", s)
	assert.Equal(t, `INSERT INTO "ks"."events" ("pk", "ts", "amount") VALUES ($1, $2, $3)`, b.Query)
	assert.Equal(t, []string{"pk", "ts", "amount"}, b.Columns)
	assert.Equal(t, int64(42), b.Values[0])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), b.Values[1])
	assert.True(t, decimal.RequireFromString("1234.50").Equal(b.Values[2].(decimal.Decimal)))
	assert.Equal(t, []byte("42"), b.RoutingKey)
	assert.Same(t, rec, b.Record)
	assert.True(t, b.Idempotent)
}

func TestMapJSONRecord(t *testing.T) {
	m := newMapper(t)
	rec := record.New(`{}`, "file:///in.jsonl?line=1", []record.Field{
		{Name: "amount", Value: json.Number("7")},
		{Name: "id", Value: json.Number("1")},
		{Name: "when", Value: json.Number("0")},
	})
	b, ok := m.Map(rec).(*statement.Bound)
	require.True(t, ok)
	assert.Equal(t, int64(1), b.Values[0])
	assert.Equal(t, time.Unix(0, 0).UTC(), b.Values[1])
}

func TestMapFailures(t *testing.T) {
	m := newMapper(t)

	failed := record.NewFailed("x", "loc", errors.New("parse"))
	u, ok := m.Map(failed).(*statement.Unmappable)
	require.True(t, ok)
	assert.Same(t, failed, u.Record)

	missing := record.New("x", "loc", []record.Field{{Name: "id", Value: "1"}})
	u, ok = m.Map(missing).(*statement.Unmappable)
	require.True(t, ok)
	assert.ErrorIs(t, u.Err, ErrMissingField)

	bad := record.New("x", "loc", []record.Field{{Name: "id", Value: "abc"}, {Name: "when", Value: ""}, {Name: "amount", Value: "1"}})
	u, ok = m.Map(bad).(*statement.Unmappable)
	require.True(t, ok)
	assert.ErrorIs(t, u.Err, codec.ErrConversion)
	assert.ErrorContains(t, u.Err, "column pk")

	nullKey := record.New("x", "loc", []record.Field{{Name: "id", Value: ""}, {Name: "when", Value: ""}, {Name: "amount", Value: "1"}})
	u, ok = m.Map(nullKey).(*statement.Unmappable)
	require.True(t, ok)
	assert.ErrorContains(t, u.Err, "cannot be null")
}

func TestAllowMissingFields(t *testing.T) {
	mapping := testMapping(t)
	mapping.AllowMissingFields = true
	m, err := NewMapper(mapping, codec.NewRegistry(), codec.DefaultSettings())
	require.NoError(t, err)
	b, ok := m.Map(record.New("1", "loc", []record.Field{{Name: "id", Value: "1"}})).(*statement.Bound)
	require.True(t, ok)
	assert.Nil(t, b.Values[1])
	assert.Nil(t, b.Values[2])
}

func TestSelectStatements(t *testing.T) {
	m := newMapper(t, WithFetchSize(100))
	single := m.SelectStatements(1)
	require.Len(t, single, 1)
	assert.Equal(t, `SELECT "pk", "ts", "amount" FROM "ks"."events"`, single[0].Query)
	assert.Equal(t, 100, single[0].FetchSize)
	assert.Equal(t, "table://ks/events?split=1%2F1", single[0].Record.Location())

	split := m.SelectStatements(4)
	require.Len(t, split, 4)
	assert.Contains(t, split[3].Query, `hashtext(concat_ws(',', "pk"::text))`)
	assert.Contains(t, split[3].Query, "% 4 = 3")
}

func TestUnmap(t *testing.T) {
	s := newMapper(t).SelectStatements(1)[0]
	res := executor.ReadResult{
		Statement: s,
		Position:  3,
		Row: &executor.Row{
			Columns: []string{"pk", "ts", "amount"},
			Values:  []any{int64(7), time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), decimal.RequireFromString("1234.5")},
		},
	}

	text := newMapper(t).Unmap(res)
	require.NoError(t, text.Err())
	assert.Equal(t, []string{"id", "when", "amount"}, text.Names())
	id, _ := text.Get("id")
	assert.Equal(t, "7", id)
	assert.Equal(t, "table://ks/events?row=3&split=1%2F1", text.Location())

	js := newMapper(t, WithOutputFormat(codec.FormatJSON)).Unmap(res)
	require.NoError(t, js.Err())
	id, _ = js.Get("id")
	assert.Equal(t, json.Number("7"), id)

	res.Row.Values[0] = "not a number"
	failed := newMapper(t).Unmap(res)
	assert.Error(t, failed.Err())
	assert.Contains(t, failed.Source(), "pk: 'not a number'")
}

func TestCoerce(t *testing.T) {
	v, err := coerce(decimal.RequireFromString("12"), codec.VarInt)
	require.NoError(t, err)
	assert.Equal(t, "12", v.(interface{ String() string }).String())
	_, err = coerce(decimal.RequireFromString("1.5"), codec.VarInt)
	assert.Error(t, err)
	v, err = coerce(int16(5), codec.TinyInt)
	require.NoError(t, err)
	assert.Equal(t, int8(5), v)
	_, err = coerce(int16(500), codec.TinyInt)
	assert.Error(t, err)
}
