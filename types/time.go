package types

import "time"

// Block timestamps count nanoseconds since the Unix epoch, which keeps
// them a plain uint64 in headers and in the VM context.

// TimestampNanos converts t to a block timestamp.
func TimestampNanos(t time.Time) uint64 {
	return uint64(t.UnixNano())
}

// TimeFromNanos is the inverse of TimestampNanos, in UTC.
func TimeFromNanos(ns uint64) time.Time {
	return time.Unix(0, int64(ns)).UTC()
}

// Duration is a time.Duration that survives cramberry encoding. Zero
// disables whatever limit it configures.
type Duration struct {
	Nanos int64 `cramberry:"1"`
}

// DurationFromGo wraps d.
func DurationFromGo(d time.Duration) Duration { return Duration{Nanos: int64(d)} }

// ToGo unwraps d.
func (d Duration) ToGo() time.Duration { return time.Duration(d.Nanos) }
