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
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var lineBreaks = strings.NewReplacer("\r\n", "\\n", "\n", "\\n", "\r", "\\r")

// SingleLine renders a record source on one line. Line breaks are escaped.
func SingleLine(source any) string {
	return lineBreaks.Replace(strings.TrimSpace(sourceText(source)))
}

// badLine is the replayable form of a source: its text, trimmed.
func badLine(source any) string {
	return strings.TrimSpace(sourceText(source)) + "\n"
}

func sourceText(source any) string {
	switch s := source.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	b, err := json.Marshal(source)
	if err != nil {
		return fmt.Sprint(source)
	}
	return string(b)
}
