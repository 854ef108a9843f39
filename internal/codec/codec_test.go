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
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringCodec(t *testing.T, target DataType, s Settings) Codec[string] {
	t.Helper()
	c, err := NewRegistry().String(target, s)
	require.NoError(t, err)
	return c
}

var allTypes = []DataType{
	Text, ASCII, Boolean, TinyInt, SmallInt, Int, BigInt, VarInt, Float, Double,
	Decimal, Timestamp, Date, Time, UUID, TimeUUID, Blob,
}

func TestNullHandlingEveryCodec(t *testing.T) {
	s := DefaultSettings()
	s.NullWords = []string{"NULL"}
	for _, target := range allTypes {
		t.Run(target.String(), func(t *testing.T) {
			c := stringCodec(t, target, s)
			for _, in := range []string{"", "NULL"} {
				v, err := c.ConvertFrom(in)
				require.NoError(t, err)
				assert.Nil(t, v)
			}
			out, err := c.ConvertTo(nil)
			require.NoError(t, err)
			assert.Equal(t, "NULL", out)

			j, err := NewRegistry().JSON(target, DefaultSettings())
			require.NoError(t, err)
			v, err := j.ConvertFrom(nil)
			require.NoError(t, err)
			assert.Nil(t, v)
			node, err := j.ConvertTo(nil)
			require.NoError(t, err)
			assert.Nil(t, node)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		target DataType
		in     string
	}{
		{Text, "hello, world"},
		{ASCII, "plain"},
		{Boolean, "yes"},
		{TinyInt, "-128"},
		{SmallInt, "32767"},
		{Int, "-2147483648"},
		{BigInt, "9223372036854775807"},
		{VarInt, "123456789012345678901234567890"},
		{Float, "3.25"},
		{Double, "0.1"},
		{Double, "-1.7976931348623157e308"},
		{Decimal, "12345.678900"},
		{Timestamp, "2020-02-03T04:05:06.123456789Z"},
		{Timestamp, "1960-07-01 12:00:00"},
		{Date, "2021-12-31"},
		{Time, "13:14:15.5"},
		{UUID, "9b2e0a4c-5d1e-4f7a-8b6c-3d2e1f0a9b8c"},
		{TimeUUID, "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"},
		{Blob, "0xcafe"},
	}
	for _, tt := range tests {
		t.Run(tt.target.String()+"/"+tt.in, func(t *testing.T) {
			c := stringCodec(t, tt.target, DefaultSettings())
			first, err := c.ConvertFrom(tt.in)
			require.NoError(t, err)
			require.NotNil(t, first)
			text, err := c.ConvertTo(first)
			require.NoError(t, err)
			second, err := c.ConvertFrom(text)
			require.NoError(t, err)
			assert.True(t, Equal(first, second), "%v (%T) != %v (%T) via %q", first, first, second, second, text)
		})
	}
}

func TestStringToBigInt(t *testing.T) {
	s := DefaultSettings()
	s.FormatNumbers = true
	c := stringCodec(t, BigInt, s)

	accepts := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"9223372036854775807", math.MaxInt64},
		{"-9223372036854775808", math.MinInt64},
		{"9,223,372,036,854,775,807", math.MaxInt64},
		{"-9,223,372,036,854,775,808", math.MinInt64},
		{"1970-01-01T00:00:00Z", 0},
		{"2000-01-01T00:00:00Z", 946684800000},
		{"TRUE", 1},
		{"FALSE", 0},
		{"1e3", 1000},
	}
	for _, tt := range accepts {
		v, err := c.ConvertFrom(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, v, tt.in)
	}

	rejects := []struct {
		in   string
		want error
	}{
		{"not a valid long", ErrMalformed},
		{"1.2", ErrPrecisionLoss},
		{"9223372036854775808", ErrOutOfRange},
		{"-9223372036854775809", ErrOutOfRange},
	}
	for _, tt := range rejects {
		_, err := c.ConvertFrom(tt.in)
		require.Error(t, err, tt.in)
		assert.ErrorIs(t, err, ErrConversion, tt.in)
		assert.ErrorIs(t, err, tt.want, tt.in)
		var ce *ConversionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, BigInt, ce.Target)
	}

	out, err := c.ConvertTo(int64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, "9,223,372,036,854,775,807", out)
	out, err = c.ConvertTo(int64(-1234))
	require.NoError(t, err)
	assert.Equal(t, "-1,234", out)

	plain := stringCodec(t, BigInt, DefaultSettings())
	out, err = plain.ConvertTo(int64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", out)
}

func TestNarrowing(t *testing.T) {
	tests := []struct {
		target DataType
		in     string
		want   any
		err    error
	}{
		{TinyInt, "127", int8(127), nil},
		{TinyInt, "128", nil, ErrOutOfRange},
		{SmallInt, "-32769", nil, ErrOutOfRange},
		{Int, "2147483647", int32(math.MaxInt32), nil},
		{Int, "10.0", int32(10), nil},
		{Int, "10.5", nil, ErrPrecisionLoss},
		{Float, "1e39", nil, ErrOutOfRange},
		{Double, "1e400", nil, ErrOutOfRange},
		{Double, "2.5", 2.5, nil},
		{Decimal, "1,234.50", decimal.RequireFromString("1234.5"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.target.String()+"/"+tt.in, func(t *testing.T) {
			v, err := stringCodec(t, tt.target, DefaultSettings()).ConvertFrom(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, v), "got %v (%T)", v, v)
		})
	}
}

func TestVarIntRejectsFractions(t *testing.T) {
	c := stringCodec(t, VarInt, DefaultSettings())
	v, err := c.ConvertFrom("-99999999999999999999999")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("-99999999999999999999999", 10)
	assert.Equal(t, 0, want.Cmp(v.(*big.Int)))
	_, err = c.ConvertFrom("0.5")
	assert.ErrorIs(t, err, ErrPrecisionLoss)
}

func TestNumericTimestampUnitAndEpoch(t *testing.T) {
	s := DefaultSettings()
	s.TimeUnit = time.Second
	s.Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	v, err := stringCodec(t, Int, s).ConvertFrom("2000-01-01T00:01:00Z")
	require.NoError(t, err)
	assert.Equal(t, int32(60), v)

	ts, err := stringCodec(t, Timestamp, s).ConvertFrom("3600")
	require.NoError(t, err)
	assert.True(t, time.Date(2000, 1, 1, 1, 0, 0, 0, time.UTC).Equal(ts.(time.Time)))
}

func TestBooleanCodec(t *testing.T) {
	s := DefaultSettings()
	s.BooleanWords = []BooleanWords{{True: "si", False: "no"}}
	s.BooleanNumbers = [2]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(-1)}
	c := stringCodec(t, Boolean, s)

	for in, want := range map[string]bool{"SI": true, "no": false, "1": true, "-1": false, "1.0": true} {
		v, err := c.ConvertFrom(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
	_, err := c.ConvertFrom("0")
	assert.ErrorIs(t, err, ErrConversion)

	out, err := c.ConvertTo(false)
	require.NoError(t, err)
	assert.Equal(t, "no", out)
}

func TestTimestampTimeZone(t *testing.T) {
	s := DefaultSettings()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s.TimeZone = loc
	c := stringCodec(t, Timestamp, s)

	v, err := c.ConvertFrom("2024-01-15 09:30:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC).Equal(v.(time.Time)))
	out, err := c.ConvertTo(v)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T09:30:00-05:00", out)
}

func TestDateAndTime(t *testing.T) {
	d := stringCodec(t, Date, DefaultSettings())
	v, err := d.ConvertFrom("2000-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Equal(v.(time.Time)))
	_, err = d.ConvertFrom("2000-01-01T00:00:01Z")
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	tm := stringCodec(t, Time, DefaultSettings())
	v, err = tm.ConvertFrom("3600000000000")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, v)
	_, err = tm.ConvertFrom("86400000000000")
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = tm.ConvertTo(25 * time.Hour)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMismatchedNativeType(t *testing.T) {
	_, err := stringCodec(t, Timestamp, DefaultSettings()).ConvertTo("2020-01-01")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = stringCodec(t, TinyInt, DefaultSettings()).ConvertTo(int64(1000))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = stringCodec(t, ASCII, DefaultSettings()).ConvertFrom("héllo")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = stringCodec(t, Blob, DefaultSettings()).ConvertFrom("0xzz")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestUUIDCodecFromTimestamp(t *testing.T) {
	s := DefaultSettings()
	s.UUIDStrategy = StrategyMin
	c := stringCodec(t, TimeUUID, s)

	v, err := c.ConvertFrom("2000-01-01T00:00:00Z")
	require.NoError(t, err)
	u := v.(uuid.UUID)
	at, err := InstantOf(u)
	require.NoError(t, err)
	assert.True(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Equal(at))

	_, err = c.ConvertFrom(uuid.New().String())
	assert.ErrorIs(t, err, ErrConversion, "random uuids are not time uuids")
	_, err = c.ConvertTo(uuid.New())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestConfigSettings(t *testing.T) {
	cfg := DefaultConfig()
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().Fingerprint(), s.Fingerprint())

	cfg.TimeUnit = "seconds"
	cfg.UUIDStrategy = "fixed"
	cfg.BooleanWords = []string{"on:off"}
	s, err = cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.TimeUnit)
	assert.Equal(t, StrategyFixed, s.UUIDStrategy)
	assert.Equal(t, []BooleanWords{{True: "on", False: "off"}}, s.BooleanWords)
	assert.NotEqual(t, DefaultSettings().Fingerprint(), s.Fingerprint())

	bad := []func(*Config){
		func(c *Config) { c.TimeUnit = "fortnights" },
		func(c *Config) { c.UUIDStrategy = "sequential" },
		func(c *Config) { c.BooleanWords = []string{"yes"} },
		func(c *Config) { c.BooleanNumbers = []string{"1", "1"} },
		func(c *Config) { c.DecimalSeparator = "," },
		func(c *Config) { c.TimeZone = "Mars/Olympus" },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		_, err := c.Settings()
		assert.Error(t, err, "case %d", i)
	}
}

func TestParseDataType(t *testing.T) {
	for _, dt := range allTypes {
		got, err := ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	got, err := ParseDataType("Double Precision")
	require.NoError(t, err)
	assert.Equal(t, Double, got)
	_, err = ParseDataType("geometry")
	assert.Error(t, err)
}
