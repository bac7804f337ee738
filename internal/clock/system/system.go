// Package system provides the wall clock used to stamp runs.
package system

import "time"

// Clock implements catalog.Clock in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to the second, matching the
// resolution of artifact timestamps.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
