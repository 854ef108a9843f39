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

package pgdriver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/bulkrunner/internal/codec"
	"github.com/cardinalhq/bulkrunner/internal/mapping"
)

const columnsQuery = `
SELECT column_name, udt_name
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const primaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = ($1::text)::regclass AND i.indisprimary
ORDER BY array_position(i.indkey, a.attnum)`

// DescribeTable returns the columns of schema.table in declaration order and
// its primary key columns.
func DescribeTable(ctx context.Context, db DB, schema, table string) ([]mapping.Column, []string, error) {
	rows, err := db.Query(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, nil, fmt.Errorf("describing %s.%s: %w", schema, table, err)
	}
	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (mapping.Column, error) {
		var name, udt string
		if err := row.Scan(&name, &udt); err != nil {
			return mapping.Column{}, err
		}
		return mapping.Column{Name: name, Type: dataTypeOf(udt), Field: name}, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("describing %s.%s: %w", schema, table, err)
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s.%s not found", schema, table)
	}

	rows, err = db.Query(ctx, primaryKeyQuery, pgx.Identifier{schema, table}.Sanitize())
	if err != nil {
		return nil, nil, fmt.Errorf("reading primary key of %s.%s: %w", schema, table, err)
	}
	pk, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, nil, fmt.Errorf("reading primary key of %s.%s: %w", schema, table, err)
	}
	return columns, pk, nil
}

// dataTypeOf maps a PostgreSQL type name onto a codec type. Types without a
// dedicated codec are handled as text.
func dataTypeOf(udt string) codec.DataType {
	switch udt {
	case "bpchar", "name", "citext", "json", "jsonb", "inet", "interval":
		return codec.Text
	}
	t, err := codec.ParseDataType(udt)
	if err != nil {
		return codec.Text
	}
	return t
}
