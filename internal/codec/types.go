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

package codec

import (
	"fmt"
	"strings"
)

// DataType is a database-native column type. Each type has exactly one Go
// representation:
//
//	Text, ASCII           string
//	Boolean               bool
//	TinyInt ... BigInt    int8, int16, int32, int64
//	VarInt                *big.Int
//	Float, Double         float32, float64
//	Decimal               decimal.Decimal
//	Timestamp, Date       time.Time (UTC; dates at midnight)
//	Time                  time.Duration since midnight
//	UUID, TimeUUID        uuid.UUID
//	Blob                  []byte
type DataType int

const (
	Text DataType = iota
	ASCII
	Boolean
	TinyInt
	SmallInt
	Int
	BigInt
	VarInt
	Float
	Double
	Decimal
	Timestamp
	Date
	Time
	UUID
	TimeUUID
	Blob
)

var dataTypeNames = map[DataType]string{
	Text:      "text",
	ASCII:     "ascii",
	Boolean:   "boolean",
	TinyInt:   "tinyint",
	SmallInt:  "smallint",
	Int:       "int",
	BigInt:    "bigint",
	VarInt:    "varint",
	Float:     "float",
	Double:    "double",
	Decimal:   "decimal",
	Timestamp: "timestamp",
	Date:      "date",
	Time:      "time",
	UUID:      "uuid",
	TimeUUID:  "timeuuid",
	Blob:      "blob",
}

// aliases accepts the spellings of common SQL dialects.
var dataTypeAliases = map[string]DataType{
	"varchar":          Text,
	"string":           Text,
	"bool":             Boolean,
	"int2":             SmallInt,
	"int4":             Int,
	"integer":          Int,
	"int8":             BigInt,
	"long":             BigInt,
	"numeric":          Decimal,
	"real":             Float,
	"float4":           Float,
	"float8":           Double,
	"double precision": Double,
	"timestamptz":      Timestamp,
	"bytea":            Blob,
}

func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// IsNumeric reports whether values of t are numbers.
func (t DataType) IsNumeric() bool {
	switch t {
	case TinyInt, SmallInt, Int, BigInt, VarInt, Float, Double, Decimal:
		return true
	}
	return false
}

// IsIntegral reports whether t only holds whole numbers.
func (t DataType) IsIntegral() bool {
	switch t {
	case TinyInt, SmallInt, Int, BigInt, VarInt:
		return true
	}
	return false
}

// ParseDataType maps a type name to a DataType.
func ParseDataType(name string) (DataType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, s := range dataTypeNames {
		if s == n {
			return t, nil
		}
	}
	if t, ok := dataTypeAliases[n]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}
