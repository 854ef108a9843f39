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
	"strings"

	"github.com/shopspring/decimal"
)

// lookupBoolWord matches v against the boolean words, ignoring case.
func (s Settings) lookupBoolWord(v string) (value bool, ok bool) {
	t := strings.TrimSpace(v)
	for _, w := range s.BooleanWords {
		if strings.EqualFold(t, w.True) {
			return true, true
		}
		if strings.EqualFold(t, w.False) {
			return false, true
		}
	}
	return false, false
}

// boolFromNumber maps a boolean number to its value.
func (s Settings) boolFromNumber(d decimal.Decimal) (bool, bool) {
	switch {
	case d.Equal(s.BooleanNumbers[0]):
		return true, true
	case d.Equal(s.BooleanNumbers[1]):
		return false, true
	}
	return false, false
}

// numberFromBool returns the boolean number for b.
func (s Settings) numberFromBool(b bool) decimal.Decimal {
	if b {
		return s.BooleanNumbers[0]
	}
	return s.BooleanNumbers[1]
}

func (s Settings) formatBool(b bool) string {
	words := BooleanWords{True: "true", False: "false"}
	if len(s.BooleanWords) > 0 {
		words = s.BooleanWords[0]
	}
	if b {
		return words.True
	}
	return words.False
}
