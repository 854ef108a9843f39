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
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// newJSONCodec converts decoded JSON nodes: nil, bool, json.Number, string,
// []any and map[string]any. Strings are handed to the string codec of the
// same target so both formats share one grammar.
func newJSONCodec(target DataType, s Settings, text *converter[string]) *converter[any] {
	return &converter[any]{
		target: target,
		from: func(v any) (any, error) {
			switch x := v.(type) {
			case nil:
				return nil, nil
			case string:
				return text.ConvertFrom(x)
			case json.Number:
				return jsonNumber(x, target, s, text)
			case float64:
				return jsonNumber(json.Number(decimal.NewFromFloat(x).String()), target, s, text)
			case bool:
				return jsonBool(x, target, s)
			default:
				if target == Text {
					b, err := json.Marshal(x)
					if err != nil {
						return nil, convErr(v, target, err)
					}
					return string(b), nil
				}
				return nil, convErr(v, target, ErrUnsupported)
			}
		},
		to: func(n any) (any, error) {
			if n == nil {
				return nil, nil
			}
			switch target {
			case Boolean:
				if b, ok := n.(bool); ok {
					return b, nil
				}
				return nil, convErr(n, target, ErrUnsupported)
			case TinyInt, SmallInt, Int, BigInt, VarInt, Decimal:
				d, err := toDecimal(n)
				if err != nil {
					return nil, convErr(n, target, err)
				}
				return json.Number(d.String()), nil
			case Float, Double:
				// Plain literal so the node survives a trip through the string codec.
				plain := s
				plain.FormatNumbers = false
				plain.DecimalSeparator = "."
				str, err := plain.formatNumber(n, target)
				if err != nil {
					return nil, convErr(n, target, err)
				}
				return json.Number(str), nil
			case Blob:
				if b, ok := n.([]byte); ok {
					return base64.StdEncoding.EncodeToString(b), nil
				}
				return nil, convErr(n, target, ErrUnsupported)
			default:
				return text.ConvertTo(n)
			}
		},
	}
}

func jsonNumber(n json.Number, target DataType, s Settings, text *converter[string]) (any, error) {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return nil, convErr(n, target, ErrMalformed)
	}
	switch {
	case target.IsNumeric():
		v, err := narrow(d, target)
		if err != nil {
			return nil, convErr(n, target, err)
		}
		return v, nil
	case target == Boolean:
		if b, ok := s.boolFromNumber(d); ok {
			return b, nil
		}
		return nil, convErr(n, target, ErrMalformed)
	case target == Text || target == ASCII:
		return string(n), nil
	case target == Timestamp:
		ts, err := NewInstantCodec(s).FromUnits(d)
		if err != nil {
			return nil, convErr(n, target, err)
		}
		return ts, nil
	default:
		return text.ConvertFrom(string(n))
	}
}

func jsonBool(b bool, target DataType, s Settings) (any, error) {
	switch {
	case target == Boolean:
		return b, nil
	case target.IsNumeric():
		v, err := narrow(s.numberFromBool(b), target)
		if err != nil {
			return nil, convErr(b, target, err)
		}
		return v, nil
	case target == Text:
		return s.formatBool(b), nil
	}
	return nil, convErr(b, target, ErrUnsupported)
}
