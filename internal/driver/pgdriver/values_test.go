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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bulkrunner/internal/codec"
)

func TestBindValues(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	out := bindValues([]any{
		int8(3),
		big.NewInt(12),
		decimal.RequireFromString("12.345"),
		id,
		90 * time.Second,
		"text",
		nil,
	})
	require.Len(t, out, 7)
	assert.Equal(t, int16(3), out[0])
	assert.Equal(t, pgtype.Numeric{Int: big.NewInt(12), Valid: true}, out[1])
	assert.Equal(t, pgtype.Numeric{Int: big.NewInt(12345), Exp: -3, Valid: true}, out[2])
	assert.Equal(t, pgtype.UUID{Bytes: id, Valid: true}, out[3])
	assert.Equal(t, pgtype.Time{Microseconds: 90_000_000, Valid: true}, out[4])
	assert.Equal(t, "text", out[5])
	assert.Nil(t, out[6])
	assert.Nil(t, bindValues(nil))
}

func TestNativeValue(t *testing.T) {
	d := nativeValue(pgtype.Numeric{Int: big.NewInt(-125), Exp: -2, Valid: true})
	assert.True(t, decimal.RequireFromString("-1.25").Equal(d.(decimal.Decimal)))
	assert.Nil(t, nativeValue(pgtype.Numeric{}))

	raw := [16]byte{1, 2, 3}
	assert.Equal(t, uuid.UUID(raw), nativeValue(raw))
	assert.Equal(t, 2*time.Hour, nativeValue(pgtype.Time{Microseconds: int64(2 * time.Hour / time.Microsecond), Valid: true}))

	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, time.UTC, nativeValue(local).(time.Time).Location())
	assert.Equal(t, int32(5), nativeValue(int32(5)))
}

func TestDataTypeOf(t *testing.T) {
	assert.Equal(t, codec.BigInt, dataTypeOf("int8"))
	assert.Equal(t, codec.Int, dataTypeOf("int4"))
	assert.Equal(t, codec.Timestamp, dataTypeOf("timestamptz"))
	assert.Equal(t, codec.Blob, dataTypeOf("bytea"))
	assert.Equal(t, codec.Text, dataTypeOf("bpchar"))
	assert.Equal(t, codec.Text, dataTypeOf("tsvector"))
}

func TestConnString(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "bulk runner")
	s, err := Config{Host: "db", DBName: "app", User: "u", Password: "p", SSLMode: "disable"}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@db:5432/app?application_name=bulk_runner&sslmode=disable", s)

	s, err = Config{URL: "postgres://x/y"}.ConnString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x/y", s)

	_, err = Config{}.ConnString()
	assert.ErrorIs(t, err, ErrDatabaseNotConfigured)
}
