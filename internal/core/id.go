package core

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7 string, falling back to v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
