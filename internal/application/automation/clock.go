// Package automation wires the domain pipeline into a background
// processor: leasing queued responses, running the scoring, risk,
// action plan and notification stages, and recording the audit trail.
package automation

import "time"

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
