// Package window implements the millisecond-precision timestamp and
// time-UUID conversions that bound a single CDC polling window. These
// are deliberately pure, stateless functions: every other
// package treats a Timestamp as an opaque, totally-ordered instant and
// converts to time-UUID bounds only at the point of issuing a CQL
// query.
package window

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Timestamp is a wall-clock instant at millisecond precision, the unit
// CDC generations and task windows are expressed in.
type Timestamp int64

// FromTime truncates t to millisecond precision.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the UTC time.Time corresponding to the receiver.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Add returns t advanced by d, truncated to whole milliseconds.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d.Milliseconds())
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

// gregorianOffset100ns is the number of 100ns intervals between the
// Gregorian calendar epoch (1582-10-15, used by UUID version 1) and
// the Unix epoch (1970-01-01).
const gregorianOffset100ns = 0x01B21DD213814000

// UUID is a 16-byte time-UUID (RFC 4122 version 1), used only as the
// half-open CQL bound for a window; it is never interpreted as a
// random unique identifier here. It is an alias of uuid.UUID so window
// bounds and the change.ChangeID.Time values they are compared against
// print and parse through google/uuid's formatting/parsing.
type UUID = uuid.UUID

// timeUUID builds a version-1 UUID whose embedded millisecond is t.
// With allOnes false it uses the first 100ns tick of that millisecond
// and all-zero low bits, yielding the smallest possible UUID for it;
// with allOnes true it uses the last tick and all-one low bits,
// yielding the largest, matching Cassandra/Scylla's minTimeuuid() and
// maxTimeuuid() CQL functions.
func timeUUID(t Timestamp, allOnes bool) UUID {
	ticks := uint64(int64(t))*10000 + gregorianOffset100ns
	if allOnes {
		ticks += 9999
	}

	var u UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(ticks))
	binary.BigEndian.PutUint16(u[4:6], uint16(ticks>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(ticks>>48)&0x0FFF|0x1000) // version 1

	if allOnes {
		u[8] = 0xBF // variant 10, remaining bits set
		u[9] = 0xFF
		for i := 10; i < 16; i++ {
			u[i] = 0xFF
		}
	} else {
		u[8] = 0x80 // variant 10, remaining bits clear
		u[9] = 0x00
		for i := 10; i < 16; i++ {
			u[i] = 0x00
		}
	}
	return u
}

// StartUUID returns the smallest time-UUID whose embedded millisecond
// equals t.Millis(). Used as the exclusive lower bound of a window:
// `cdc$time > StartUUID(windowStart)`.
func StartUUID(t Timestamp) UUID {
	return timeUUID(t, false)
}

// EndUUID returns the largest time-UUID strictly preceding t, i.e. the
// maximal UUID for millisecond t-1. Used as the inclusive upper bound
// of a window: `cdc$time <= EndUUID(windowEnd)`.
//
// The -1ms bias is mandatory: without it, two adjacent windows
// [a,b) and [b,c) would both admit a row whose time-UUID embeds
// millisecond b, double-delivering it.
func EndUUID(t Timestamp) UUID {
	return timeUUID(t-1, true)
}

// EmbeddedMillis extracts the millisecond embedded in a version-1
// time-UUID. It is the inverse used by tests to validate the
// StartUUID/EndUUID round trip.
func EmbeddedMillis(u UUID) Timestamp {
	hi := uint64(binary.BigEndian.Uint16(u[6:8]) & 0x0FFF)
	mid := uint64(binary.BigEndian.Uint16(u[4:6]))
	lo := uint64(binary.BigEndian.Uint32(u[0:4]))
	ticks := hi<<48 | mid<<32 | lo
	return Timestamp((ticks - gregorianOffset100ns) / 10000)
}

// Compare returns -1, 0, or 1 as a and b are ordered. Equal timestamps
// compare as 0.
func Compare(a, b Timestamp) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
