// Package memory is the in-process registry backend. One Store owns product
// metadata, custody trails, the ownership index and the product counter, all
// behind a single lock so a transaction is atomic across the four of them.
package memory

import (
	"context"
	"sync"

	"provenance/internal/registry/models"
	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

type txKey struct{}

// Store implements store.ProductStore, store.TrailStore, store.OwnershipStore
// and store.Tx over in-memory maps.
type Store struct {
	mu       sync.RWMutex
	products map[uint64]models.Product
	trails   map[uint64][]models.CustodyEvent
	owners   map[uint64]id.Identity
	order    []uint64
	count    uint64

	// journal collects undo closures for the transaction in flight so a
	// failed transaction leaves no partial state.
	journal []func()
}

func New() *Store {
	return &Store{
		products: make(map[uint64]models.Product),
		trails:   make(map[uint64][]models.CustodyEvent),
		owners:   make(map[uint64]id.Identity),
	}
}

// RunInTx serializes mutating transactions behind the write lock. Readers
// block until commit, so an in-progress transaction is never observable.
// On error every journaled write is reverted in reverse order.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = s.journal[:0]
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for i := len(s.journal) - 1; i >= 0; i-- {
			s.journal[i]()
		}
		return err
	}
	return nil
}

// inTx reports whether the caller already holds the store lock via RunInTx.
func inTx(ctx context.Context) bool {
	held, _ := ctx.Value(txKey{}).(bool)
	return held
}

func (s *Store) rlock(ctx context.Context) (unlock func()) {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock(ctx context.Context) (unlock func()) {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Create assigns the next identifier and stores the product.
func (s *Store) Create(ctx context.Context, product *models.Product) error {
	defer s.lock(ctx)()

	s.count++
	product.ID = s.count
	s.products[product.ID] = *product
	s.order = append(s.order, product.ID)

	if inTx(ctx) {
		productID := product.ID
		s.journal = append(s.journal, func() {
			delete(s.products, productID)
			s.order = s.order[:len(s.order)-1]
			s.count--
		})
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, productID uint64) (*models.Product, error) {
	defer s.rlock(ctx)()

	product, ok := s.products[productID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &product, nil
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	defer s.rlock(ctx)()
	return s.count, nil
}

// Append adds one custody event to a product's trail.
func (s *Store) Append(ctx context.Context, productID uint64, event models.CustodyEvent) error {
	defer s.lock(ctx)()

	s.trails[productID] = append(s.trails[productID], event)

	if inTx(ctx) {
		s.journal = append(s.journal, func() {
			trail := s.trails[productID]
			if len(trail) <= 1 {
				// An empty trail must read as a missing product, so the
				// key goes away with its last event.
				delete(s.trails, productID)
				return
			}
			s.trails[productID] = trail[:len(trail)-1]
		})
	}
	return nil
}

func (s *Store) ListByProduct(ctx context.Context, productID uint64) ([]models.CustodyEvent, error) {
	defer s.rlock(ctx)()

	trail, ok := s.trails[productID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.CustodyEvent{}, trail...), nil
}

// Set upserts the current owner for a product.
func (s *Store) Set(ctx context.Context, productID uint64, owner id.Identity) error {
	defer s.lock(ctx)()

	previous, existed := s.owners[productID]
	s.owners[productID] = owner

	if inTx(ctx) {
		s.journal = append(s.journal, func() {
			if existed {
				s.owners[productID] = previous
			} else {
				delete(s.owners, productID)
			}
		})
	}
	return nil
}

func (s *Store) Get(ctx context.Context, productID uint64) (id.Identity, error) {
	defer s.rlock(ctx)()

	owner, ok := s.owners[productID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

// EnumerateAll returns (id, owner) pairs in product insertion order.
func (s *Store) EnumerateAll(ctx context.Context) ([]models.OwnershipRecord, error) {
	defer s.rlock(ctx)()

	records := make([]models.OwnershipRecord, 0, len(s.order))
	for _, productID := range s.order {
		owner, ok := s.owners[productID]
		if !ok {
			continue
		}
		records = append(records, models.OwnershipRecord{ProductID: productID, Owner: owner})
	}
	return records, nil
}
