package service

import (
	"time"

	"github.com/google/uuid"
)

// SystemClock is the wall clock, truncated to the microsecond precision
// the database keeps.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewUUIDv7 returns a time-ordered id, falling back to a random one.
func NewUUIDv7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
