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

package logmanager

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("log manager is closed")

// TooManyErrorsError ends a run whose error budget is exhausted.
type TooManyErrorsError struct {
	MaxErrors int64
}

func (e *TooManyErrorsError) Error() string {
	return fmt.Sprintf("Too many errors, the maximum allowed is %d", e.MaxErrors)
}
