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
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cardinalhq/bulkrunner/internal/codec"
	"github.com/cardinalhq/bulkrunner/internal/executor"
	"github.com/cardinalhq/bulkrunner/internal/record"
	"github.com/cardinalhq/bulkrunner/internal/statement"
)

var ErrMissingField = errors.New("field not found in record")

// Mapper is safe for concurrent use.
type Mapper struct {
	mapping   Mapping
	json      []codec.Codec[any]
	text      []codec.Codec[string]
	output    codec.Format
	pkIndex   []int
	insert    string
	columns   []string
	fetchSize int
}

type Option func(*Mapper)

// WithOutputFormat selects the external form produced by Unmap: text for
// delimited output, JSON nodes otherwise.
func WithOutputFormat(f codec.Format) Option {
	return func(m *Mapper) { m.output = f }
}

// WithFetchSize sets the page size of generated reads.
func WithFetchSize(n int) Option {
	return func(m *Mapper) { m.fetchSize = n }
}

// NewMapper resolves one codec per column from reg.
func NewMapper(mapping Mapping, reg *codec.Registry, settings codec.Settings, opts ...Option) (*Mapper, error) {
	m := &Mapper{mapping: mapping, fetchSize: executor.DefaultFetchSize}
	for _, opt := range opts {
		opt(m)
	}
	for i, col := range mapping.Columns {
		jc, err := reg.JSON(col.Type, settings)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		tc, err := reg.String(col.Type, settings)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		m.json = append(m.json, jc)
		m.text = append(m.text, tc)
		m.columns = append(m.columns, col.Name)
		for _, k := range mapping.PartitionKey {
			if k == col.Name {
				m.pkIndex = append(m.pkIndex, i)
			}
		}
	}
	m.insert = m.insertQuery()
	return m, nil
}

func (m *Mapper) Mapping() Mapping { return m.mapping }

func (m *Mapper) tableName() string {
	if m.mapping.Keyspace == "" {
		return pgx.Identifier{m.mapping.Table}.Sanitize()
	}
	return pgx.Identifier{m.mapping.Keyspace, m.mapping.Table}.Sanitize()
}

func (m *Mapper) columnList() string {
	quoted := make([]string, len(m.columns))
	for i, c := range m.columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func (m *Mapper) insertQuery() string {
	params := make([]string, len(m.columns))
	for i := range params {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", m.tableName(), m.columnList(), strings.Join(params, ", "))
}

// Map converts rec into a bound INSERT. Any failure, including a failed
// record, yields an *statement.Unmappable carrying the cause.
func (m *Mapper) Map(rec *record.Record) statement.Statement {
	if err := rec.Err(); err != nil {
		return &statement.Unmappable{Record: rec, Err: err}
	}
	values := make([]any, len(m.mapping.Columns))
	for i, col := range m.mapping.Columns {
		external, ok := rec.Get(col.Field)
		if !ok {
			if !m.mapping.AllowMissingFields {
				return &statement.Unmappable{Record: rec, Err: fmt.Errorf("column %s: %w: %s", col.Name, ErrMissingField, col.Field)}
			}
			continue
		}
		native, err := m.json[i].ConvertFrom(external)
		if err != nil {
			return &statement.Unmappable{Record: rec, Err: fmt.Errorf("column %s: %w", col.Name, err)}
		}
		values[i] = native
	}
	key, err := m.routingKey(values)
	if err != nil {
		return &statement.Unmappable{Record: rec, Err: err}
	}
	return &statement.Bound{
		Record:     rec,
		Keyspace:   m.mapping.Keyspace,
		Table:      m.mapping.Table,
		Query:      m.insert,
		Columns:    m.columns,
		Values:     values,
		RoutingKey: key,
		Idempotent: true,
	}
}

// routingKey serializes the partition key values. A table without a
// partition key yields no key.
func (m *Mapper) routingKey(values []any) ([]byte, error) {
	if len(m.pkIndex) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	for n, i := range m.pkIndex {
		if values[i] == nil {
			return nil, fmt.Errorf("primary key column %s cannot be null", m.columns[i])
		}
		if n > 0 {
			sb.WriteByte(0)
		}
		sb.WriteString(statement.FormatValue(values[i]))
	}
	return []byte(sb.String()), nil
}

// SelectStatements returns the reads of an unload. With splits above one and
// a partition key, the table is divided into that many disjoint hash ranges.
func (m *Mapper) SelectStatements(splits int) []*statement.Bound {
	base := fmt.Sprintf("SELECT %s FROM %s", m.columnList(), m.tableName())
	if splits <= 1 || len(m.pkIndex) == 0 {
		return []*statement.Bound{m.selectStatement(base, 1, 1)}
	}
	keys := make([]string, len(m.pkIndex))
	for n, i := range m.pkIndex {
		keys[n] = pgx.Identifier{m.columns[i]}.Sanitize() + "::text"
	}
	hash := fmt.Sprintf("(hashtext(concat_ws(',', %s))::bigint & 2147483647)", strings.Join(keys, ", "))
	out := make([]*statement.Bound, splits)
	for i := range splits {
		q := fmt.Sprintf("%s WHERE %s %% %d = %d", base, hash, splits, i)
		out[i] = m.selectStatement(q, i+1, splits)
	}
	return out
}

func (m *Mapper) selectStatement(query string, split, splits int) *statement.Bound {
	u := url.URL{Scheme: "table", Host: m.mapping.Keyspace, Path: "/" + m.mapping.Table}
	q := url.Values{}
	q.Set("split", fmt.Sprintf("%d/%d", split, splits))
	u.RawQuery = q.Encode()
	return &statement.Bound{
		Record:     record.New(query, u.String(), nil),
		Keyspace:   m.mapping.Keyspace,
		Table:      m.mapping.Table,
		Query:      query,
		Columns:    m.columns,
		FetchSize:  m.fetchSize,
		Idempotent: true,
	}
}

// Unmap converts one read row into a record whose fields are named after
// the mapped fields. Conversion failures yield a failed record.
func (m *Mapper) Unmap(res executor.ReadResult) *record.Record {
	location := rowLocation(res)
	row := res.Row
	if row == nil {
		return record.NewFailed(nil, location, errors.New("read result has no row"))
	}
	source := rowSource(row)
	byName := make(map[string]int, len(row.Columns))
	for i, c := range row.Columns {
		byName[c] = i
	}
	fields := make([]record.Field, 0, len(m.mapping.Columns))
	for i, col := range m.mapping.Columns {
		idx, ok := byName[col.Name]
		if !ok || idx >= len(row.Values) {
			return record.NewFailed(source, location, fmt.Errorf("column %s missing from result", col.Name))
		}
		native, err := coerce(row.Values[idx], col.Type)
		if err != nil {
			return record.NewFailed(source, location, fmt.Errorf("column %s: %w", col.Name, err))
		}
		var external any
		if m.output == codec.FormatJSON {
			external, err = m.json[i].ConvertTo(native)
		} else {
			external, err = m.text[i].ConvertTo(native)
		}
		if err != nil {
			return record.NewFailed(source, location, fmt.Errorf("column %s: %w", col.Name, err))
		}
		fields = append(fields, record.Field{Name: col.Field, Value: external})
	}
	return record.New(source, location, fields)
}

func rowLocation(res executor.ReadResult) string {
	base := ""
	if res.Statement != nil && res.Statement.Record != nil {
		base = res.Statement.Record.Location()
	}
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{}
	}
	q := u.Query()
	q.Set("row", strconv.FormatInt(res.Position, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func rowSource(row *executor.Row) string {
	parts := make([]string, len(row.Values))
	for i, v := range row.Values {
		name := strconv.Itoa(i)
		if i < len(row.Columns) {
			name = row.Columns[i]
		}
		parts[i] = name + ": " + statement.FormatValue(v)
	}
	return strings.Join(parts, ", ")
}

// coerce adapts driver values whose Go type differs from the codec's native
// type for the column.
func coerce(v any, t codec.DataType) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		if t == codec.VarInt {
			if !x.Equal(x.Truncate(0)) {
				return nil, fmt.Errorf("%s is not an integer", x)
			}
			return x.BigInt(), nil
		}
	case *big.Int:
		if t == codec.Decimal {
			return decimal.NewFromBigInt(x, 0), nil
		}
	case int16:
		if t == codec.TinyInt {
			if x < -128 || x > 127 {
				return nil, fmt.Errorf("%d overflows tinyint", x)
			}
			return int8(x), nil
		}
	}
	return v, nil
}
