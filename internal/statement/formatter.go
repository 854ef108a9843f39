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

package statement

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Verbosity controls how much of a statement is rendered.
type Verbosity int

const (
	// Abridged renders the query text only.
	Abridged Verbosity = iota
	// Normal adds the bound values.
	Normal
	// Extended adds routing and execution attributes.
	Extended
)

// ParseVerbosity accepts the names used in configuration.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abridged", "0":
		return Abridged, nil
	case "normal", "", "1":
		return Normal, nil
	case "extended", "2":
		return Extended, nil
	}
	return Normal, fmt.Errorf("unknown statement verbosity %q", s)
}

const ellipsis = "..."

// Formatter renders statements for error logs. Zero limits mean unlimited.
type Formatter struct {
	Verbosity           Verbosity
	MaxQueryLength      int
	MaxBoundValueLength int
	MaxBoundValues      int
	MaxInnerStatements  int
}

// DefaultFormatter returns the limits used when none are configured.
func DefaultFormatter() Formatter {
	return Formatter{
		Verbosity:           Normal,
		MaxQueryLength:      500,
		MaxBoundValueLength: 50,
		MaxBoundValues:      50,
		MaxInnerStatements:  10,
	}
}

// Format renders s on one or more lines.
func (f Formatter) Format(s Statement) string {
	var sb strings.Builder
	switch st := s.(type) {
	case *Bound:
		f.writeBound(&sb, st, "")
	case *Batch:
		fmt.Fprintf(&sb, "[%s BATCH, %d statements]", st.Type, st.Len())
		for i, child := range st.Statements {
			if f.MaxInnerStatements > 0 && i >= f.MaxInnerStatements {
				sb.WriteString("\n    ")
				sb.WriteString(ellipsis)
				break
			}
			fmt.Fprintf(&sb, "\n    [%d] ", i+1)
			f.writeBound(&sb, child, "    ")
		}
	case *Unmappable:
		sb.WriteString("[unmappable]")
	default:
		fmt.Fprintf(&sb, "%T", s)
	}
	return sb.String()
}

func (f Formatter) writeBound(sb *strings.Builder, b *Bound, indent string) {
	sb.WriteString(Truncate(b.Query, f.MaxQueryLength))
	if f.Verbosity >= Extended {
		fmt.Fprintf(sb, "\n%s    keyspace: %s, table: %s, idempotent: %t", indent, b.Keyspace, b.Table, b.Idempotent)
		if b.RoutingKey != nil {
			fmt.Fprintf(sb, ", routing key: 0x%s", hex.EncodeToString(b.RoutingKey))
		}
		if b.FetchSize > 0 {
			fmt.Fprintf(sb, ", fetch size: %d", b.FetchSize)
		}
	}
	if f.Verbosity < Normal {
		return
	}
	for i, v := range b.Values {
		if f.MaxBoundValues > 0 && i >= f.MaxBoundValues {
			fmt.Fprintf(sb, "\n%s    %s", indent, ellipsis)
			break
		}
		name := fmt.Sprintf("$%d", i+1)
		if i < len(b.Columns) {
			name = b.Columns[i]
		}
		fmt.Fprintf(sb, "\n%s    %s: %s", indent, name, Truncate(FormatValue(v), f.MaxBoundValueLength))
	}
}

// FormatValue renders a native value the way it would appear in a query.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case time.Time:
		return "'" + x.UTC().Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Truncate cuts s to at most limit bytes, on a character boundary, and
// marks the cut with an ellipsis. A limit of zero or less keeps s whole.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + ellipsis
}
