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
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstantCodec parses and formats timestamp-shaped strings. It backs every
// codec whose native value is derived from an instant, so timestamp, date
// and time-UUID columns share one timestamp grammar.
type InstantCodec struct {
	settings Settings
}

// NewInstantCodec returns the instant codec for s.
func NewInstantCodec(s Settings) InstantCodec {
	return InstantCodec{settings: s}
}

// ParseLiteral parses v with the configured layouts only.
func (c InstantCodec) ParseLiteral(v string) (time.Time, error) {
	t := strings.TrimSpace(v)
	for _, layout := range c.settings.TimestampLayouts {
		if ts, err := time.ParseInLocation(layout, t, c.settings.zone()); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrMalformed
}

// Parse parses v as a layout literal, then as a count of the configured unit
// since the configured epoch.
func (c InstantCodec) Parse(v string) (time.Time, error) {
	if ts, err := c.ParseLiteral(v); err == nil {
		return ts, nil
	}
	d, err := c.settings.parseDecimal(v)
	if err != nil {
		return time.Time{}, ErrMalformed
	}
	return c.FromUnits(d)
}

// Format renders ts with the first configured layout in the configured zone.
func (c InstantCodec) Format(ts time.Time) string {
	layout := time.RFC3339Nano
	if len(c.settings.TimestampLayouts) > 0 {
		layout = c.settings.TimestampLayouts[0]
	}
	return ts.In(c.settings.zone()).Format(layout)
}

var nanosPerSecond = decimal.NewFromInt(int64(time.Second))

// ToUnits returns the whole number of configured units between the epoch and
// ts, truncated toward zero.
func (c InstantCodec) ToUnits(ts time.Time) decimal.Decimal {
	epoch := c.settings.Epoch
	secs := decimal.NewFromInt(ts.Unix() - epoch.Unix()).Mul(nanosPerSecond)
	nanos := secs.Add(decimal.NewFromInt(int64(ts.Nanosecond() - epoch.Nanosecond())))
	return nanos.Div(decimal.NewFromInt(int64(c.settings.unit()))).Truncate(0)
}

// FromUnits returns epoch + n units. Fractional units below one nanosecond
// are rejected.
func (c InstantCodec) FromUnits(n decimal.Decimal) (time.Time, error) {
	nanos := n.Mul(decimal.NewFromInt(int64(c.settings.unit())))
	if !nanos.IsInteger() {
		return time.Time{}, ErrPrecisionLoss
	}
	secs := nanos.Div(nanosPerSecond).Floor()
	rem := nanos.Sub(secs.Mul(nanosPerSecond))
	if secs.Abs().GreaterThan(decimal.NewFromInt(maxUnixSeconds)) {
		return time.Time{}, ErrOutOfRange
	}
	epoch := c.settings.Epoch
	return time.Unix(epoch.Unix()+secs.IntPart(), int64(epoch.Nanosecond())+rem.IntPart()).UTC(), nil
}

// maxUnixSeconds keeps results within the years Go can format.
const maxUnixSeconds = 253402300799 // 9999-12-31T23:59:59Z

// parseDate accepts the date layout, then any instant at midnight.
func (c InstantCodec) parseDate(v string) (time.Time, error) {
	zone := c.settings.zone()
	if d, err := time.ParseInLocation(c.settings.DateLayout, strings.TrimSpace(v), zone); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	ts, err := c.Parse(v)
	if err != nil {
		return time.Time{}, err
	}
	local := ts.In(zone)
	if local.Hour() != 0 || local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
		return time.Time{}, fmt.Errorf("%w: instant is not at midnight", ErrPrecisionLoss)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (c InstantCodec) formatDate(d time.Time) string {
	return d.UTC().Format(c.settings.DateLayout)
}

const day = 24 * time.Hour

// parseTimeOfDay accepts the time layout or a count of nanoseconds.
func (c InstantCodec) parseTimeOfDay(v string) (time.Duration, error) {
	t := strings.TrimSpace(v)
	if ts, err := time.Parse(c.settings.TimeLayout, t); err == nil {
		return time.Duration(ts.Hour())*time.Hour +
			time.Duration(ts.Minute())*time.Minute +
			time.Duration(ts.Second())*time.Second +
			time.Duration(ts.Nanosecond()), nil
	}
	d, err := c.settings.parseDecimal(t)
	if err != nil {
		return 0, ErrMalformed
	}
	if !d.IsInteger() {
		return 0, ErrPrecisionLoss
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(int64(day))) {
		return 0, ErrOutOfRange
	}
	return time.Duration(d.IntPart()), nil
}

func (c InstantCodec) formatTimeOfDay(d time.Duration) (string, error) {
	if d < 0 || d >= day {
		return "", ErrOutOfRange
	}
	return time.Time{}.Add(d).Format(c.settings.TimeLayout), nil
}
