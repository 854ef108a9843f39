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
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeNodes(t *testing.T, doc string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestJSONCodecFromNodes(t *testing.T) {
	nodes := decodeNodes(t, `{"n": 42, "s": "1,000", "b": true, "f": 2.5, "o": {"a": 1}, "ts": 946684800000}`)
	reg := NewRegistry()
	s := DefaultSettings()

	bigint, err := reg.JSON(BigInt, s)
	require.NoError(t, err)
	for key, want := range map[string]int64{"n": 42, "s": 1000, "b": 1} {
		v, err := bigint.ConvertFrom(nodes[key])
		require.NoError(t, err, key)
		assert.Equal(t, want, v, key)
	}
	_, err = bigint.ConvertFrom(nodes["f"])
	assert.ErrorIs(t, err, ErrPrecisionLoss)
	_, err = bigint.ConvertFrom(nodes["o"])
	assert.ErrorIs(t, err, ErrConversion)

	text, err := reg.JSON(Text, s)
	require.NoError(t, err)
	v, err := text.ConvertFrom(nodes["o"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, v.(string))
	v, err = text.ConvertFrom(nodes["n"])
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	ts, err := reg.JSON(Timestamp, s)
	require.NoError(t, err)
	v, err = ts.ConvertFrom(nodes["ts"])
	require.NoError(t, err)
	assert.True(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Equal(v.(time.Time)))

	boolean, err := reg.JSON(Boolean, s)
	require.NoError(t, err)
	v, err = boolean.ConvertFrom(json.Number("0"))
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestJSONCodecToNodes(t *testing.T) {
	reg := NewRegistry()
	s := DefaultSettings()
	s.FormatNumbers = true

	bigint, err := reg.JSON(BigInt, s)
	require.NoError(t, err)
	node, err := bigint.ConvertTo(int64(1234567))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1234567"), node, "json numbers are never grouped")

	dbl, err := reg.JSON(Double, s)
	require.NoError(t, err)
	node, err = dbl.ConvertTo(0.1)
	require.NoError(t, err)
	assert.Equal(t, json.Number("0.1"), node)

	ts, err := reg.JSON(Timestamp, s)
	require.NoError(t, err)
	node, err = ts.ConvertTo(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2000-01-01T00:00:00Z", node)

	blob, err := reg.JSON(Blob, s)
	require.NoError(t, err)
	node, err = blob.ConvertTo([]byte{0xca, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, "yv4=", node)

	boolean, err := reg.JSON(Boolean, s)
	require.NoError(t, err)
	_, err = boolean.ConvertTo("true")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestJSONRoundTrip(t *testing.T) {
	reg := NewRegistry()
	for _, target := range []DataType{BigInt, Double, Decimal, Boolean, Timestamp, UUID, Blob, Text} {
		c, err := reg.JSON(target, DefaultSettings())
		require.NoError(t, err)
		var in any
		switch target {
		case BigInt:
			in = json.Number("-77")
		case Double:
			in = json.Number("6.02214076e23")
		case Decimal:
			in = json.Number("0.000001")
		case Boolean:
			in = true
		case Timestamp:
			in = "2001-09-09T01:46:40.5Z"
		case UUID:
			in = "0f8fad5b-d9cb-469f-a165-70867728950e"
		case Blob:
			in = "AQID"
		case Text:
			in = "plain"
		}
		first, err := c.ConvertFrom(in)
		require.NoError(t, err, target.String())
		node, err := c.ConvertTo(first)
		require.NoError(t, err, target.String())
		second, err := c.ConvertFrom(node)
		require.NoError(t, err, target.String())
		assert.True(t, Equal(first, second), "%s: %v != %v", target, first, second)
	}
}

func TestRegistryMemoizes(t *testing.T) {
	reg := NewRegistry()
	s := DefaultSettings()

	a, err := reg.String(BigInt, s)
	require.NoError(t, err)
	b, err := reg.String(BigInt, DefaultSettings())
	require.NoError(t, err)
	assert.Same(t, a, b, "equal settings share a codec")

	other := DefaultSettings()
	other.GroupingSeparator = " "
	c, err := reg.String(BigInt, other)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	j, err := reg.JSON(BigInt, s)
	require.NoError(t, err)
	assert.NotSame(t, any(a), any(j))
	assert.Equal(t, 3, reg.Len())
}

func TestRegistryConcurrentLookup(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	results := make([]Codec[string], 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := reg.String(Timestamp, DefaultSettings())
			if err == nil {
				results[i] = c
			}
		}(i)
	}
	wg.Wait()
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}
