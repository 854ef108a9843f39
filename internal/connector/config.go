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

// Package connector reads records from, and writes records to, delimited and
// JSON-lines resources.
package connector

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Format names a connector.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatJSON, "jsonl", "ndjson":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown connector %q", s)
}

const DefaultMaxLineSize = 10 * 1024 * 1024

// Config selects and tunes a connector.
type Config struct {
	Name string `mapstructure:"name"`
	// URL is a local path, a file:// or http(s):// URL, or "-" for the
	// standard streams.
	URL         string `mapstructure:"url"`
	Delimiter   string `mapstructure:"delimiter"`
	Header      bool   `mapstructure:"header"`
	Comment     string `mapstructure:"comment"`
	SkipRecords int64  `mapstructure:"skip_records"`
	// MaxRecords stops reading after that many records. Zero or less reads
	// everything.
	MaxRecords  int64 `mapstructure:"max_records"`
	MaxLineSize int   `mapstructure:"max_line_size"`
}

func DefaultConfig() Config {
	return Config{
		Name:        string(FormatCSV),
		URL:         "-",
		Delimiter:   ",",
		Header:      true,
		MaxLineSize: DefaultMaxLineSize,
	}
}

func (c Config) Format() (Format, error) {
	return ParseFormat(c.Name)
}

func (c Config) delimiter() (rune, error) {
	if c.Delimiter == "" {
		return ',', nil
	}
	if c.Delimiter == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size != len(c.Delimiter) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	return r, nil
}

func (c Config) comment() (rune, error) {
	if c.Comment == "" {
		return 0, nil
	}
	r, size := utf8.DecodeRuneInString(c.Comment)
	if size != len(c.Comment) {
		return 0, fmt.Errorf("comment must be a single character, got %q", c.Comment)
	}
	return r, nil
}
