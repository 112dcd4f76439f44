// Package system provides the wall clock used by the command line tool.
package system

import "time"

// Clock reports the current time in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock that reports UTC, used for exported run metadata.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewLocal creates a Clock in the machine's local zone, used for the
// human-read failure log.
func NewLocal() *Clock {
	return &Clock{loc: time.Local}
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	if c.loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.loc)
}
