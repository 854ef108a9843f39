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

// Package record holds the unit of external data moved by a load or unload.
package record

import (
	"fmt"
	"net/url"
	"strconv"
)

// Field is one named value of a record. Values are external representations:
// strings for delimited text, decoded JSON nodes for JSON.
type Field struct {
	Name  string
	Value any
}

// Record is one unit of external input or output. It is immutable after
// creation and safe to share between goroutines.
type Record struct {
	source   any
	location string
	fields   []Field
	index    map[string]int
	err      error
}

// New creates a record. source is the raw input (the original line, or the
// decoded document) and location is used for diagnostics only.
func New(source any, location string, fields []Field) *Record {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.Name] = i
	}
	return &Record{source: source, location: location, fields: fields, index: idx}
}

// NewFailed creates a record that could not be parsed or converted.
func NewFailed(source any, location string, err error) *Record {
	return &Record{source: source, location: location, err: err}
}

func (r *Record) Source() any      { return r.source }
func (r *Record) Location() string { return r.location }
func (r *Record) Err() error       { return r.err }
func (r *Record) Fields() []Field  { return r.fields }
func (r *Record) Len() int         { return len(r.fields) }

// Get returns the value of the named field.
func (r *Record) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Names returns the field names in order.
func (r *Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

func (r *Record) String() string {
	return fmt.Sprintf("record(%s)", r.location)
}

// Location builds a resource location with a line number, for example
// file:///data/in.csv?line=12.
func Location(resource string, line int64) string {
	u, err := url.Parse(resource)
	if err != nil || u.Scheme == "" {
		u = &url.URL{Scheme: "file", Path: resource}
	}
	q := u.Query()
	q.Set("line", strconv.FormatInt(line, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
