// File: internal/fixloop/clock.go
package fixloop

import "time"

// Clock abstracts wall time so the timeout bound can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }
