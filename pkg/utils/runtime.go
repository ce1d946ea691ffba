package utils

import (
	"time"

	"github.com/google/uuid"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator produces random UUID identifiers.
type UUIDGenerator struct{}

// NewID returns a new UUIDv4 string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
