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
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var intBounds = map[DataType][2]decimal.Decimal{
	TinyInt:  {decimal.NewFromInt(math.MinInt8), decimal.NewFromInt(math.MaxInt8)},
	SmallInt: {decimal.NewFromInt(math.MinInt16), decimal.NewFromInt(math.MaxInt16)},
	Int:      {decimal.NewFromInt(math.MinInt32), decimal.NewFromInt(math.MaxInt32)},
	BigInt:   {decimal.NewFromInt(math.MinInt64), decimal.NewFromInt(math.MaxInt64)},
}

// parseDecimal reads a number literal, honoring the configured separators.
func (s Settings) parseDecimal(v string) (decimal.Decimal, error) {
	t := strings.TrimSpace(v)
	if s.GroupingSeparator != "" {
		t = strings.ReplaceAll(t, s.GroupingSeparator, "")
	}
	if s.DecimalSeparator != "" && s.DecimalSeparator != "." {
		t = strings.Replace(t, s.DecimalSeparator, ".", 1)
	}
	if t == "" || !looksNumeric(t) {
		return decimal.Zero, ErrMalformed
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero, ErrMalformed
	}
	return d, nil
}

// looksNumeric rejects the inputs decimal.NewFromString would accept but a
// number literal never contains, such as embedded spaces or words.
func looksNumeric(t string) bool {
	for i, r := range t {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case (r == '+' || r == '-') && (i == 0 || t[i-1] == 'e' || t[i-1] == 'E'):
		case (r == 'e' || r == 'E') && i > 0:
		default:
			return false
		}
	}
	return true
}

// narrow converts an arbitrary-precision value to the Go type of target,
// failing rather than rounding or wrapping.
func narrow(d decimal.Decimal, target DataType) (any, error) {
	if target.IsIntegral() && !d.IsInteger() {
		return nil, ErrPrecisionLoss
	}
	switch target {
	case TinyInt, SmallInt, Int, BigInt:
		b := intBounds[target]
		if d.LessThan(b[0]) || d.GreaterThan(b[1]) {
			return nil, ErrOutOfRange
		}
		n := d.IntPart()
		switch target {
		case TinyInt:
			return int8(n), nil
		case SmallInt:
			return int16(n), nil
		case Int:
			return int32(n), nil
		default:
			return n, nil
		}
	case VarInt:
		return d.BigInt(), nil
	case Float:
		f, _ := d.Float64()
		if math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil, ErrOutOfRange
		}
		return float32(f), nil
	case Double:
		f, _ := d.Float64()
		if math.IsInf(f, 0) {
			return nil, ErrOutOfRange
		}
		return f, nil
	case Decimal:
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupported, target)
}

// toDecimal widens any supported native number.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint8:
		return decimal.NewFromInt(int64(x)), nil
	case uint16:
		return decimal.NewFromInt(int64(x)), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case *big.Int:
		return decimal.NewFromBigInt(x, 0), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, ErrUnsupported
		}
		return decimal.NewFromFloat(x), nil
	case decimal.Decimal:
		return x, nil
	case bool:
		if x {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrUnsupported
}

// formatNumber renders a native number of the given type.
func (s Settings) formatNumber(v any, target DataType) (string, error) {
	var text string
	switch x := v.(type) {
	case float32:
		if target != Float {
			return "", ErrUnsupported
		}
		text = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		if target != Double {
			return "", ErrUnsupported
		}
		text = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		d, err := toDecimal(v)
		if err != nil {
			return "", err
		}
		if _, err := narrow(d, target); err != nil {
			return "", err
		}
		text = d.String()
	}
	return s.localize(text), nil
}

// localize applies the configured separators to a plain number literal.
func (s Settings) localize(text string) string {
	intPart, frac, hasFrac := strings.Cut(text, ".")
	if s.FormatNumbers && s.GroupingSeparator != "" {
		intPart = group(intPart, s.GroupingSeparator)
	}
	if !hasFrac {
		return intPart
	}
	sep := s.DecimalSeparator
	if sep == "" {
		sep = "."
	}
	return intPart + sep + frac
}

func group(digits, sep string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}
	var sb strings.Builder
	sb.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if sb.Len() > len(sign) {
			sb.WriteString(sep)
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
