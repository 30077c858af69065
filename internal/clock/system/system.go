// Package system supplies the clocks the syncer stamps runs with.
package system

import "time"

// Clock reads the wall clock. Times are returned in UTC so watermarks
// persist without a zone.
type Clock struct{}

// New returns a wall Clock.
func New() *Clock { return &Clock{} }

// Now implements domain.Clock.
func (*Clock) Now() time.Time { return time.Now().UTC() }

// Fixed always reports the same instant.
type Fixed time.Time

// Now implements domain.Clock.
func (f Fixed) Now() time.Time { return time.Time(f) }
