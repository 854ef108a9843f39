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
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// bindValues converts codec native values into types pgx encodes.
func bindValues(values []any) []any {
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = bindValue(v)
	}
	return out
}

func bindValue(v any) any {
	switch x := v.(type) {
	case int8:
		return int16(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		return pgtype.Numeric{Int: x, Exp: 0, Valid: true}
	case decimal.Decimal:
		return pgtype.Numeric{Int: x.Coefficient(), Exp: x.Exponent(), Valid: true}
	case uuid.UUID:
		return pgtype.UUID{Bytes: x, Valid: true}
	case time.Duration:
		return pgtype.Time{Microseconds: x.Microseconds(), Valid: true}
	}
	return v
}

// nativeValue converts what pgx decodes into codec native values.
func nativeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		if x.NaN || x.InfinityModifier != pgtype.Finite {
			f, err := x.Float64Value()
			if err != nil || !f.Valid {
				return nil
			}
			return f.Float64
		}
		return decimal.NewFromBigInt(x.Int, x.Exp)
	case [16]byte:
		return uuid.UUID(x)
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		return time.Duration(x.Microseconds) * time.Microsecond
	case time.Time:
		return x.UTC()
	case pgtype.Interval:
		if !x.Valid {
			return nil
		}
		return time.Duration(x.Microseconds)*time.Microsecond +
			time.Duration(x.Days)*24*time.Hour
	}
	return v
}
