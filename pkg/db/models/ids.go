package models

import "github.com/google/uuid"

// NewShortID returns the 7-character identifier used for taxis and
// hails. The truncated UUID keeps wire compatibility with existing
// clients; collisions surface as unique violations on insert.
func NewShortID() string {
	return uuid.NewString()[:7]
}
