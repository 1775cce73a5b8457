package util

import "github.com/google/uuid"

// NewID returns a random UUID v4 string. Used for request ids and post ids.
func NewID() string {
	return uuid.NewString()
}
