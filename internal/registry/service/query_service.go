package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/sentinel"
)

// MovementDelimiter joins action labels in GetMovements output. Labels are
// not escaped against the delimiter; the two built-in actions cannot contain
// it, so the joined string splits back losslessly.
const MovementDelimiter = "; "

// ProductDetails is the composed single-product view.
type ProductDetails struct {
	ID     uint64
	Name   string
	Origin string
	Owner  id.Identity
}

// Movements is a product's rendered custody history. Actors and Timestamps
// are parallel sequences aligned index-for-index with the joined actions.
type Movements struct {
	Actions    string
	Actors     []id.Identity
	Timestamps []int64
}

// MovementsPage selects a window of a long trail. The zero value means the
// whole trail.
type MovementsPage struct {
	Offset int
	Limit  int
}

// QueryService serves read-only views over committed registry state.
type QueryService struct {
	products store.ProductStore
	trails   store.TrailStore
	owners   store.OwnershipStore
	logger   *slog.Logger
}

func NewQueryService(stores Stores, opts ...Option) *QueryService {
	cfg := applyOptions(opts)
	return &QueryService{
		products: stores.Products,
		trails:   stores.Trails,
		owners:   stores.Owners,
		logger:   cfg.logger,
	}
}

// GetProduct composes the metadata and ownership lookups. A miss on either
// is invalid_product.
func (s *QueryService) GetProduct(ctx context.Context, productID uint64) (*ProductDetails, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, s.translateLookupErr(err, productID)
	}
	owner, err := s.owners.Get(ctx, productID)
	if err != nil {
		return nil, s.translateLookupErr(err, productID)
	}
	return &ProductDetails{
		ID:     product.ID,
		Name:   product.Name,
		Origin: product.Origin,
		Owner:  owner,
	}, nil
}

// GetMovements renders a product's custody history: action labels joined
// with MovementDelimiter and the actors and timestamps as parallel ordered
// sequences. The page window is applied before rendering.
func (s *QueryService) GetMovements(ctx context.Context, productID uint64, page MovementsPage) (*Movements, error) {
	trail, err := s.trails.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.translateLookupErr(err, productID)
	}

	trail = page.apply(trail)

	actions := make([]string, len(trail))
	actors := make([]id.Identity, len(trail))
	timestamps := make([]int64, len(trail))
	for i, event := range trail {
		actions[i] = string(event.Action)
		actors[i] = event.Actor
		timestamps[i] = event.Timestamp.Unix()
	}
	return &Movements{
		Actions:    strings.Join(actions, MovementDelimiter),
		Actors:     actors,
		Timestamps: timestamps,
	}, nil
}

// GetProductsOwnedBy returns the ids currently owned by the given identity,
// in product insertion order. No owner-keyed secondary index exists, so this
// is a full scan of the ownership records, linear in total product count.
func (s *QueryService) GetProductsOwnedBy(ctx context.Context, owner id.Identity) ([]uint64, error) {
	records, err := s.owners.EnumerateAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enumerate ownership")
	}

	ids := make([]uint64, 0)
	for _, record := range records {
		if record.Owner == owner {
			ids = append(ids, record.ProductID)
		}
	}
	return ids, nil
}

func (s *QueryService) translateLookupErr(err error, productID uint64) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeInvalidProduct, "product %d does not exist", productID)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
}

func (p MovementsPage) apply(trail []models.CustodyEvent) []models.CustodyEvent {
	if p.Offset > 0 {
		if p.Offset >= len(trail) {
			return nil
		}
		trail = trail[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(trail) {
		trail = trail[:p.Limit]
	}
	return trail
}
