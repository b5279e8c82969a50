package service

import "github.com/google/uuid"

// Actor is the authenticated identity an operation runs on behalf of.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}
