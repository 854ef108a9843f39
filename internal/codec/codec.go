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

// Package codec converts between loosely typed external values (delimited
// text, JSON nodes) and database-native values.
//
// A nil native value means the value is absent. A conversion that cannot be
// performed returns a *ConversionError instead; it never panics. Codecs are
// immutable and safe for concurrent use. Look them up through a Registry.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Codec converts between external values of type E and native values of a
// single DataType.
type Codec[E any] interface {
	Target() DataType
	ConvertFrom(external E) (any, error)
	ConvertTo(native any) (E, error)
}

type converter[E any] struct {
	target DataType
	from   func(E) (any, error)
	to     func(any) (E, error)
}

func (c *converter[E]) Target() DataType { return c.target }

func (c *converter[E]) ConvertFrom(external E) (any, error) { return c.from(external) }

func (c *converter[E]) ConvertTo(native any) (E, error) { return c.to(native) }

// newStringCodec assembles the string codec for target from the shared
// parsing helpers.
func newStringCodec(target DataType, s Settings) (*converter[string], error) {
	parse, format, err := stringFuncs(target, s)
	if err != nil {
		return nil, err
	}
	return &converter[string]{
		target: target,
		from: func(v string) (any, error) {
			if s.isNull(v) {
				return nil, nil
			}
			n, err := parse(v)
			if err != nil {
				return nil, convErr(v, target, err)
			}
			return n, nil
		},
		to: func(n any) (string, error) {
			if n == nil {
				return s.nullString(), nil
			}
			v, err := format(n)
			if err != nil {
				return "", convErr(n, target, err)
			}
			return v, nil
		},
	}, nil
}

type (
	parseFunc  func(string) (any, error)
	formatFunc func(any) (string, error)
)

func stringFuncs(target DataType, s Settings) (parseFunc, formatFunc, error) {
	instant := NewInstantCodec(s)
	switch target {
	case Text:
		return func(v string) (any, error) { return v, nil }, formatText, nil
	case ASCII:
		return parseASCII, formatText, nil
	case Boolean:
		return s.parseBool, func(n any) (string, error) {
			b, ok := n.(bool)
			if !ok {
				return "", ErrUnsupported
			}
			return s.formatBool(b), nil
		}, nil
	case TinyInt, SmallInt, Int, BigInt, VarInt, Float, Double, Decimal:
		return func(v string) (any, error) { return s.parseNumber(v, target, instant) },
			func(n any) (string, error) { return s.formatNumber(n, target) }, nil
	case Timestamp:
		return func(v string) (any, error) { return instant.Parse(v) },
			func(n any) (string, error) {
				ts, ok := n.(time.Time)
				if !ok {
					return "", ErrUnsupported
				}
				return instant.Format(ts), nil
			}, nil
	case Date:
		return func(v string) (any, error) { return instant.parseDate(v) },
			func(n any) (string, error) {
				d, ok := n.(time.Time)
				if !ok {
					return "", ErrUnsupported
				}
				return instant.formatDate(d), nil
			}, nil
	case Time:
		return func(v string) (any, error) { return instant.parseTimeOfDay(v) },
			func(n any) (string, error) {
				d, ok := n.(time.Duration)
				if !ok {
					return "", ErrUnsupported
				}
				return instant.formatTimeOfDay(d)
			}, nil
	case UUID, TimeUUID:
		return func(v string) (any, error) { return parseUUID(v, target, instant, s.UUIDStrategy) },
			func(n any) (string, error) {
				u, err := asUUID(n, target)
				if err != nil {
					return "", err
				}
				return u.String(), nil
			}, nil
	case Blob:
		return parseBlob, func(n any) (string, error) {
			b, ok := n.([]byte)
			if !ok {
				return "", ErrUnsupported
			}
			return base64.StdEncoding.EncodeToString(b), nil
		}, nil
	}
	return nil, nil, convErr(nil, target, ErrUnsupported)
}

func formatText(n any) (string, error) {
	s, ok := n.(string)
	if !ok {
		return "", ErrUnsupported
	}
	return s, nil
}

func parseASCII(v string) (any, error) {
	for i := 0; i < len(v); i++ {
		if v[i] >= utf8.RuneSelf {
			return nil, ErrMalformed
		}
	}
	return v, nil
}

// parseBool accepts boolean words, then boolean numbers.
func (s Settings) parseBool(v string) (any, error) {
	if b, ok := s.lookupBoolWord(v); ok {
		return b, nil
	}
	if d, err := s.parseDecimal(v); err == nil {
		if b, ok := s.boolFromNumber(d); ok {
			return b, nil
		}
	}
	return nil, ErrMalformed
}

// parseNumber tries a number literal, then a temporal literal, then a
// boolean word. The first interpretation that matches decides the result.
func (s Settings) parseNumber(v string, target DataType, instant InstantCodec) (any, error) {
	if d, err := s.parseDecimal(v); err == nil {
		return narrow(d, target)
	}
	if ts, err := instant.ParseLiteral(v); err == nil {
		return narrow(instant.ToUnits(ts), target)
	}
	if b, ok := s.lookupBoolWord(v); ok {
		return narrow(s.numberFromBool(b), target)
	}
	return nil, ErrMalformed
}

func parseUUID(v string, target DataType, instant InstantCodec, strategy TimeUUIDStrategy) (any, error) {
	if u, err := uuid.Parse(strings.TrimSpace(v)); err == nil {
		if target == TimeUUID && u.Version() != 1 {
			return nil, ErrUnsupported
		}
		return u, nil
	}
	ts, err := instant.Parse(v)
	if err != nil {
		return nil, ErrMalformed
	}
	return strategy.Generate(ts), nil
}

func asUUID(n any, target DataType) (uuid.UUID, error) {
	var u uuid.UUID
	switch x := n.(type) {
	case uuid.UUID:
		u = x
	case [16]byte:
		u = uuid.UUID(x)
	default:
		return u, ErrUnsupported
	}
	if target == TimeUUID && u.Version() != 1 {
		return u, ErrUnsupported
	}
	return u, nil
}

func parseBlob(v string) (any, error) {
	t := strings.TrimSpace(v)
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		b, err := hex.DecodeString(t[2:])
		if err != nil {
			return nil, ErrMalformed
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(t)
	if err != nil {
		return nil, ErrMalformed
	}
	return b, nil
}

// Equal compares two native values of the same DataType.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	case []byte:
		y, ok := b.([]byte)
		return ok && string(x) == string(y)
	default:
		return a == b
	}
}
