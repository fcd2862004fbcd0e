package gpib

import (
	"fmt"
	"strings"
	"time"
)

// Timeout is a driver timeout tier. The bus driver only accepts this fixed
// set of durations; use TimeoutFromDuration to pick a tier for an arbitrary duration.
type Timeout int

// Timeout tiers, using the NI-488.2 values.
const (
	TNone Timeout = iota
	T10us
	T30us
	T100us
	T300us
	T1ms
	T3ms
	T10ms
	T30ms
	T100ms
	T300ms
	T1s
	T3s
	T10s
	T30s
	T100s
	T300s
	T1000s
)

// DefaultTimeout is the tier used when none is configured.
const DefaultTimeout = T10s

var timeoutDurations = [...]time.Duration{
	TNone:  0,
	T10us:  10 * time.Microsecond,
	T30us:  30 * time.Microsecond,
	T100us: 100 * time.Microsecond,
	T300us: 300 * time.Microsecond,
	T1ms:   time.Millisecond,
	T3ms:   3 * time.Millisecond,
	T10ms:  10 * time.Millisecond,
	T30ms:  30 * time.Millisecond,
	T100ms: 100 * time.Millisecond,
	T300ms: 300 * time.Millisecond,
	T1s:    time.Second,
	T3s:    3 * time.Second,
	T10s:   10 * time.Second,
	T30s:   30 * time.Second,
	T100s:  100 * time.Second,
	T300s:  300 * time.Second,
	T1000s: 1000 * time.Second,
}

var timeoutNames = [...]string{
	TNone:  "none",
	T10us:  "10us",
	T30us:  "30us",
	T100us: "100us",
	T300us: "300us",
	T1ms:   "1ms",
	T3ms:   "3ms",
	T10ms:  "10ms",
	T30ms:  "30ms",
	T100ms: "100ms",
	T300ms: "300ms",
	T1s:    "1s",
	T3s:    "3s",
	T10s:   "10s",
	T30s:   "30s",
	T100s:  "100s",
	T300s:  "300s",
	T1000s: "1000s",
}

// Valid reports whether t is a known tier.
func (t Timeout) Valid() bool { return t >= TNone && t <= T1000s }

// Duration returns the duration of the tier. TNone and invalid tiers return 0.
func (t Timeout) Duration() time.Duration {
	if !t.Valid() {
		return 0
	}

	return timeoutDurations[t]
}

// String returns the tier name, e.g. "10s".
func (t Timeout) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Timeout(%d)", int(t))
	}

	return timeoutNames[t]
}

// TimeoutFromDuration returns the smallest tier that is at least d.
//
// A non-positive duration maps to TNone (no timeout). Durations above the
// largest tier are rejected.
func TimeoutFromDuration(d time.Duration) (Timeout, error) {
	if d <= 0 {
		return TNone, nil
	}

	for t := T10us; t <= T1000s; t++ {
		if timeoutDurations[t] >= d {
			return t, nil
		}
	}

	return TNone, fmt.Errorf("gpib: timeout %v exceeds the largest tier %v", d, T1000s.Duration())
}

// ParseTimeout parses a tier name ("10s", "none") or any Go duration string,
// rounding the latter up to the next tier.
func ParseTimeout(s string) (Timeout, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for t, name := range timeoutNames {
		if s == name {
			return Timeout(t), nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return TNone, fmt.Errorf("gpib: invalid timeout %q: %w", s, err)
	}

	return TimeoutFromDuration(d)
}
