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

// Package mapping turns records into bound statements and query rows back
// into records.
package mapping

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cardinalhq/bulkrunner/internal/codec"
)

// Column is one target column and the record field that feeds it.
type Column struct {
	Name  string
	Type  codec.DataType
	Field string
}

// Mapping describes the target table.
type Mapping struct {
	Keyspace     string
	Table        string
	Columns      []Column
	PartitionKey []string
	// AllowMissingFields binds null for fields absent from a record.
	AllowMissingFields bool
}

// Config is the user-facing description of a mapping. Columns and partition
// key left empty are taken from the database.
type Config struct {
	Keyspace string `mapstructure:"keyspace"`
	Table    string `mapstructure:"table"`
	// Mapping lists "field = column" pairs separated by commas. Empty maps
	// every column to the field of the same name.
	Mapping string `mapstructure:"mapping"`
	// Columns lists "name:type" declarations.
	Columns            []string `mapstructure:"columns"`
	PartitionKey       []string `mapstructure:"partition_key"`
	AllowMissingFields bool     `mapstructure:"allow_missing_fields"`
	// Splits divides an unload into that many queries over the partition key.
	Splits int `mapstructure:"splits"`
	// Workers maps records concurrently during a load when above one.
	// Record order is then not preserved.
	Workers int `mapstructure:"workers"`
}

func DefaultConfig() Config {
	return Config{Keyspace: "public", Splits: 1, Workers: 1}
}

// ParseColumns parses "name:type" declarations.
func ParseColumns(decls []string) ([]Column, error) {
	out := make([]Column, 0, len(decls))
	for _, d := range decls {
		name, typ, ok := strings.Cut(d, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("column declaration %q is not name:type", d)
		}
		t, err := codec.ParseDataType(typ)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		out = append(out, Column{Name: name, Type: t, Field: name})
	}
	return out, nil
}

// ParseFieldMapping parses "field = column" pairs and returns column to
// field.
func ParseFieldMapping(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		field, column, ok := strings.Cut(pair, "=")
		field, column = strings.TrimSpace(field), strings.TrimSpace(column)
		if !ok || field == "" || column == "" {
			return nil, fmt.Errorf("mapping entry %q is not field = column", pair)
		}
		if _, dup := out[column]; dup {
			return nil, fmt.Errorf("column %s is mapped twice", column)
		}
		out[column] = field
	}
	return out, nil
}

// Build resolves the configuration against the table's columns and primary
// key as reported by the database. Either may be nil when the configuration
// declares them.
func (c Config) Build(tableColumns []Column, tablePK []string) (Mapping, error) {
	if c.Table == "" {
		return Mapping{}, fmt.Errorf("no table configured")
	}
	columns := tableColumns
	if len(c.Columns) > 0 {
		declared, err := ParseColumns(c.Columns)
		if err != nil {
			return Mapping{}, err
		}
		columns = declared
	}
	if len(columns) == 0 {
		return Mapping{}, fmt.Errorf("table %s.%s has no columns", c.Keyspace, c.Table)
	}

	if c.Mapping != "" {
		fields, err := ParseFieldMapping(c.Mapping)
		if err != nil {
			return Mapping{}, err
		}
		var mapped []Column
		for _, col := range columns {
			if field, ok := fields[col.Name]; ok {
				col.Field = field
				mapped = append(mapped, col)
				delete(fields, col.Name)
			}
		}
		if len(fields) > 0 {
			missing := slices.Sorted(maps.Keys(fields))
			return Mapping{}, fmt.Errorf("mapped columns not in %s.%s: %s", c.Keyspace, c.Table, strings.Join(missing, ", "))
		}
		columns = mapped
	} else {
		columns = slices.Clone(columns)
		for i := range columns {
			if columns[i].Field == "" {
				columns[i].Field = columns[i].Name
			}
		}
	}

	pk := tablePK
	if len(c.PartitionKey) > 0 {
		pk = c.PartitionKey
	}
	for _, k := range pk {
		if !slices.ContainsFunc(columns, func(col Column) bool { return col.Name == k }) {
			return Mapping{}, fmt.Errorf("partition key column %s is not mapped", k)
		}
	}

	return Mapping{
		Keyspace:           c.Keyspace,
		Table:              c.Table,
		Columns:            columns,
		PartitionKey:       slices.Clone(pk),
		AllowMissingFields: c.AllowMissingFields,
	}, nil
}
