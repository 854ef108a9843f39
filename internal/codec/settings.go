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
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// BooleanWords is one pair of synonyms for true and false.
type BooleanWords struct {
	True  string
	False string
}

// Settings is the configuration bundle shared by all codecs. A Settings
// value is immutable once handed to a Registry.
type Settings struct {
	GroupingSeparator string
	DecimalSeparator  string
	// FormatNumbers writes numbers with grouping separators.
	FormatNumbers bool

	// TimestampLayouts are tried in order when parsing; the first one is used
	// for formatting.
	TimestampLayouts []string
	DateLayout       string
	TimeLayout       string
	TimeZone         *time.Location

	// TimeUnit and Epoch define numeric timestamps: n means Epoch + n*TimeUnit.
	TimeUnit time.Duration
	Epoch    time.Time

	// BooleanWords are matched case-insensitively. The first pair is used
	// when formatting.
	BooleanWords []BooleanWords
	// BooleanNumbers are the numeric values of true and false.
	BooleanNumbers [2]decimal.Decimal

	// NullWords convert to null in addition to the empty string. The first
	// one is written for null values.
	NullWords []string

	UUIDStrategy TimeUUIDStrategy
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		GroupingSeparator: ",",
		DecimalSeparator:  ".",
		TimestampLayouts: []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999Z07:00",
			"2006-01-02T15:04:05.999999999",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02",
		},
		DateLayout: "2006-01-02",
		TimeLayout: "15:04:05.999999999",
		TimeZone:   time.UTC,
		TimeUnit:   time.Millisecond,
		Epoch:      time.Unix(0, 0).UTC(),
		BooleanWords: []BooleanWords{
			{True: "true", False: "false"},
			{True: "yes", False: "no"},
			{True: "y", False: "n"},
			{True: "t", False: "f"},
			{True: "1", False: "0"},
		},
		BooleanNumbers: [2]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(0)},
		UUIDStrategy:   StrategyRandom,
	}
}

// Fingerprint identifies the settings for codec lookup. Equal settings have
// equal fingerprints.
func (s Settings) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(s.GroupingSeparator)
	sb.WriteByte(0)
	sb.WriteString(s.DecimalSeparator)
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatBool(s.FormatNumbers))
	for _, l := range s.TimestampLayouts {
		sb.WriteByte(0)
		sb.WriteString(l)
	}
	sb.WriteByte(1)
	sb.WriteString(s.DateLayout)
	sb.WriteByte(0)
	sb.WriteString(s.TimeLayout)
	sb.WriteByte(0)
	sb.WriteString(s.zone().String())
	sb.WriteByte(0)
	sb.WriteString(s.TimeUnit.String())
	sb.WriteByte(0)
	sb.WriteString(s.Epoch.UTC().Format(time.RFC3339Nano))
	for _, w := range s.BooleanWords {
		sb.WriteByte(0)
		sb.WriteString(strings.ToLower(w.True) + ":" + strings.ToLower(w.False))
	}
	sb.WriteByte(1)
	sb.WriteString(s.BooleanNumbers[0].String() + ":" + s.BooleanNumbers[1].String())
	for _, w := range s.NullWords {
		sb.WriteByte(0)
		sb.WriteString(w)
	}
	sb.WriteByte(1)
	sb.WriteString(s.UUIDStrategy.String())
	return strconv.FormatUint(xxhash.Sum64String(sb.String()), 16)
}

func (s Settings) zone() *time.Location {
	if s.TimeZone == nil {
		return time.UTC
	}
	return s.TimeZone
}

func (s Settings) unit() time.Duration {
	if s.TimeUnit <= 0 {
		return time.Millisecond
	}
	return s.TimeUnit
}

// isNull reports whether an external string stands for null.
func (s Settings) isNull(v string) bool {
	if v == "" {
		return true
	}
	for _, w := range s.NullWords {
		if v == w {
			return true
		}
	}
	return false
}

// nullString is written for native nulls.
func (s Settings) nullString() string {
	if len(s.NullWords) > 0 {
		return s.NullWords[0]
	}
	return ""
}

// Config is the user-facing form of Settings.
type Config struct {
	GroupingSeparator string   `mapstructure:"grouping_separator"`
	DecimalSeparator  string   `mapstructure:"decimal_separator"`
	FormatNumbers     bool     `mapstructure:"format_numbers"`
	TimestampLayouts  []string `mapstructure:"timestamp_layouts"`
	DateLayout        string   `mapstructure:"date_layout"`
	TimeLayout        string   `mapstructure:"time_layout"`
	TimeZone          string   `mapstructure:"time_zone"`
	TimeUnit          string   `mapstructure:"time_unit"`
	Epoch             string   `mapstructure:"epoch"`
	// BooleanWords are "true:false" pairs.
	BooleanWords   []string `mapstructure:"boolean_words"`
	BooleanNumbers []string `mapstructure:"boolean_numbers"`
	NullWords      []string `mapstructure:"null_words"`
	UUIDStrategy   string   `mapstructure:"uuid_strategy"`
}

// DefaultConfig mirrors DefaultSettings.
func DefaultConfig() Config {
	return Config{
		GroupingSeparator: ",",
		DecimalSeparator:  ".",
		TimeZone:          "UTC",
		TimeUnit:          "milliseconds",
		Epoch:             "1970-01-01T00:00:00Z",
		BooleanWords:      []string{"true:false", "yes:no", "y:n", "t:f", "1:0"},
		BooleanNumbers:    []string{"1", "0"},
		UUIDStrategy:      "random",
	}
}

var timeUnits = map[string]time.Duration{
	"nanoseconds":  time.Nanosecond,
	"microseconds": time.Microsecond,
	"milliseconds": time.Millisecond,
	"seconds":      time.Second,
	"minutes":      time.Minute,
	"hours":        time.Hour,
	"days":         24 * time.Hour,
}

// Settings validates the configuration and builds the settings bundle.
func (c Config) Settings() (Settings, error) {
	s := DefaultSettings()
	s.GroupingSeparator = c.GroupingSeparator
	if c.DecimalSeparator != "" {
		s.DecimalSeparator = c.DecimalSeparator
	}
	if s.GroupingSeparator == s.DecimalSeparator {
		return s, fmt.Errorf("grouping and decimal separators must differ, both are %q", s.DecimalSeparator)
	}
	s.FormatNumbers = c.FormatNumbers
	if len(c.TimestampLayouts) > 0 {
		s.TimestampLayouts = c.TimestampLayouts
	}
	if c.DateLayout != "" {
		s.DateLayout = c.DateLayout
	}
	if c.TimeLayout != "" {
		s.TimeLayout = c.TimeLayout
	}
	if c.TimeZone != "" {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			return s, fmt.Errorf("invalid time zone: %w", err)
		}
		s.TimeZone = loc
	}
	if c.TimeUnit != "" {
		u, ok := timeUnits[strings.ToLower(c.TimeUnit)]
		if !ok {
			return s, fmt.Errorf("invalid time unit %q", c.TimeUnit)
		}
		s.TimeUnit = u
	}
	if c.Epoch != "" {
		e, err := time.Parse(time.RFC3339Nano, c.Epoch)
		if err != nil {
			return s, fmt.Errorf("invalid epoch: %w", err)
		}
		s.Epoch = e.UTC()
	}
	if len(c.BooleanWords) > 0 {
		s.BooleanWords = s.BooleanWords[:0:0]
		for _, pair := range c.BooleanWords {
			t, f, ok := strings.Cut(pair, ":")
			if !ok || t == "" || f == "" {
				return s, fmt.Errorf("invalid boolean words %q, expected true:false", pair)
			}
			s.BooleanWords = append(s.BooleanWords, BooleanWords{True: t, False: f})
		}
	}
	if len(c.BooleanNumbers) > 0 {
		if len(c.BooleanNumbers) != 2 {
			return s, fmt.Errorf("boolean numbers needs exactly two values, got %d", len(c.BooleanNumbers))
		}
		for i, n := range c.BooleanNumbers {
			d, err := decimal.NewFromString(n)
			if err != nil {
				return s, fmt.Errorf("invalid boolean number %q: %w", n, err)
			}
			s.BooleanNumbers[i] = d
		}
		if s.BooleanNumbers[0].Equal(s.BooleanNumbers[1]) {
			return s, fmt.Errorf("boolean numbers must differ")
		}
	}
	s.NullWords = c.NullWords
	if c.UUIDStrategy != "" {
		st, err := ParseTimeUUIDStrategy(c.UUIDStrategy)
		if err != nil {
			return s, err
		}
		s.UUIDStrategy = st
	}
	return s, nil
}
