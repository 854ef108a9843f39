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
	"fmt"
)

var (
	// ErrConversion matches every *ConversionError.
	ErrConversion = errors.New("conversion failed")

	ErrMalformed     = errors.New("malformed value")
	ErrOutOfRange    = errors.New("value out of range")
	ErrPrecisionLoss = errors.New("value cannot be narrowed without loss of precision")
	ErrUnsupported   = errors.New("unsupported value type")
)

// ConversionError reports a value that could not be converted. It is
// distinct from a nil result, which means the value is absent.
type ConversionError struct {
	Value  any
	Target DataType
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %v", describe(e.Value), e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

func convErr(v any, t DataType, err error) error {
	return &ConversionError{Value: v, Target: t, Err: err}
}

func describe(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v (%T)", x, x)
	}
}
