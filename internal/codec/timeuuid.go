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
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// TimeUUIDStrategy chooses how an instant becomes a version 1 UUID.
type TimeUUIDStrategy int

const (
	// StrategyRandom keeps the instant at 100ns precision and randomizes the
	// clock sequence and node.
	StrategyRandom TimeUUIDStrategy = iota
	// StrategyFixed keeps the instant at 100ns precision and derives the
	// clock sequence and node from it, so equal instants give equal UUIDs.
	StrategyFixed
	// StrategyMin returns the smallest UUID of the instant's millisecond.
	StrategyMin
	// StrategyMax returns the largest UUID of the instant's millisecond.
	StrategyMax
)

func (s TimeUUIDStrategy) String() string {
	switch s {
	case StrategyFixed:
		return "fixed"
	case StrategyMin:
		return "min"
	case StrategyMax:
		return "max"
	default:
		return "random"
	}
}

// ParseTimeUUIDStrategy accepts min, max, fixed and random.
func ParseTimeUUIDStrategy(s string) (TimeUUIDStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random":
		return StrategyRandom, nil
	case "fixed":
		return StrategyFixed, nil
	case "min":
		return StrategyMin, nil
	case "max":
		return StrategyMax, nil
	}
	return StrategyRandom, fmt.Errorf("unknown time uuid strategy %q", s)
}

const (
	// gregorianOffset is the number of 100ns ticks between 1582-10-15 and
	// the Unix epoch.
	gregorianOffset = 0x01B21DD213814000
	ticksPerMilli   = 10_000

	minClockSeqAndNode = 0x8080808080808080
	maxClockSeqAndNode = 0x7f7f7f7f7f7f7f7f
)

// Generate builds a version 1 UUID embedding ts.
func (s TimeUUIDStrategy) Generate(ts time.Time) uuid.UUID {
	ms := ts.UnixMilli()
	switch s {
	case StrategyMin:
		return timeUUID(startOfMilli(ms), minClockSeqAndNode)
	case StrategyMax:
		return timeUUID(startOfMilli(ms+1)-1, maxClockSeqAndNode)
	case StrategyFixed:
		ticks := ticksOf(ts)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(ticks))
		return timeUUID(ticks, withVariant(xxhash.Sum64(b[:])))
	default:
		var b [8]byte
		_, _ = crand.Read(b[:])
		return timeUUID(ticksOf(ts), withVariant(binary.BigEndian.Uint64(b[:])))
	}
}

// InstantOf returns the millisecond-precision instant embedded in u.
func InstantOf(u uuid.UUID) (time.Time, error) {
	if u.Version() != 1 {
		return time.Time{}, fmt.Errorf("%w: uuid %s is version %d, not a time uuid", ErrUnsupported, u, int(u.Version()))
	}
	ticks := int64(u.Time()) - gregorianOffset
	ms := floorDiv(ticks, ticksPerMilli)
	return time.UnixMilli(ms).UTC(), nil
}

func startOfMilli(ms int64) int64 {
	return ms*ticksPerMilli + gregorianOffset
}

func ticksOf(ts time.Time) int64 {
	ticks := ts.UnixMilli()*ticksPerMilli + int64(ts.Nanosecond()%int(time.Millisecond))/100
	return ticks + gregorianOffset
}

func withVariant(lsb uint64) uint64 {
	return lsb&0x3fffffffffffffff | 0x8000000000000000
}

func timeUUID(ticks int64, lsb uint64) uuid.UUID {
	var u uuid.UUID
	t := uint64(ticks)
	binary.BigEndian.PutUint32(u[0:4], uint32(t))
	binary.BigEndian.PutUint16(u[4:6], uint16(t>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(t>>48)&0x0fff|0x1000)
	binary.BigEndian.PutUint64(u[8:16], lsb)
	return u
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
