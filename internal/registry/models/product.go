package models

import (
	"time"

	id "provenance/pkg/domain"
)

// Action labels the kind of custody event recorded in a product's trail.
type Action string

const (
	ActionCreated     Action = "Created"
	ActionTransferred Action = "Transferred"
)

// Product is immutable metadata for a registered item.
//
// Invariants:
//   - ID is positive, unique, assigned monotonically from 1 by the store
//   - Name and Origin never change after creation
//   - the product is never deleted; only its trail grows
type Product struct {
	ID        uint64
	Name      string
	Origin    string
	CreatedAt time.Time
}

// CustodyEvent is one entry in a product's audit trail.
//
// Invariants:
//   - a trail's first event is always ActionCreated with the creator as actor
//   - every later event is ActionTransferred with the new owner as actor
//   - entries are append-only, never reordered or truncated
type CustodyEvent struct {
	Action    Action
	Actor     id.Identity
	Timestamp time.Time
}

// OwnershipRecord maps a product to its current owner. Exactly one exists per
// product; it is created with the product and rewritten on every transfer.
type OwnershipRecord struct {
	ProductID uint64
	Owner     id.Identity
}
