// Package store defines the persistence interfaces for the registry. Stores
// are interface-driven so the in-memory backend used for tests and the
// Postgres backend used in production stay swappable without rewiring the
// services.
package store

import (
	"context"

	"provenance/internal/registry/models"
	id "provenance/pkg/domain"
)

// ProductStore holds immutable product metadata and owns identifier
// allocation. Create assigns the next id; Count reports how many products
// have ever been created, which bounds the valid id range [1, Count].
type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, productID uint64) (*models.Product, error)
	Count(ctx context.Context) (uint64, error)
}

// TrailStore is the append-only custody log per product. Append never
// validates ordering; the registry service guarantees it.
type TrailStore interface {
	Append(ctx context.Context, productID uint64, event models.CustodyEvent) error
	ListByProduct(ctx context.Context, productID uint64) ([]models.CustodyEvent, error)
}

// OwnershipStore maps product ids to current owners. EnumerateAll yields
// records in product insertion order; reverse lookups scan it linearly since
// no owner-keyed secondary index is maintained.
type OwnershipStore interface {
	Get(ctx context.Context, productID uint64) (id.Identity, error)
	Set(ctx context.Context, productID uint64, owner id.Identity) error
	EnumerateAll(ctx context.Context) ([]models.OwnershipRecord, error)
}

// Tx runs fn as one atomic unit over all three stores. Either every write in
// fn commits or none does; readers never observe an in-progress state.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
