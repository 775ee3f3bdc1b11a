package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	registrymetrics "provenance/internal/registry/metrics"
	"provenance/internal/registry/models"
	"provenance/internal/registry/notify"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// RegistryService orchestrates product creation and ownership transfer. It is
// the sole writer to the product, trail and ownership stores; every mutation
// runs inside one storage transaction so a failed precondition leaves no
// partial state.
type RegistryService struct {
	stores   Stores
	logger   *slog.Logger
	notifier Notifier
	metrics  *registrymetrics.Metrics
}

func NewRegistryService(stores Stores, opts ...Option) *RegistryService {
	cfg := applyOptions(opts)
	return &RegistryService{
		stores:   stores,
		logger:   cfg.logger,
		notifier: cfg.notifier,
		metrics:  cfg.metrics,
	}
}

// CreateProduct allocates the next identifier, stores the immutable metadata,
// appends the initial Created custody event and records the creator as owner,
// atomically. Name and origin are free-form and deliberately unvalidated.
func (s *RegistryService) CreateProduct(ctx context.Context, name, origin string, caller id.Identity) (uint64, error) {
	start := time.Now()
	if caller.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthenticated, "caller identity is required")
	}

	now := requestcontext.Now(ctx)
	var product *models.Product
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		p := &models.Product{Name: name, Origin: origin, CreatedAt: now}
		if err := s.stores.Products.Create(txCtx, p); err != nil {
			return err
		}
		if err := s.stores.Trails.Append(txCtx, p.ID, models.CustodyEvent{
			Action:    models.ActionCreated,
			Actor:     caller,
			Timestamp: now,
		}); err != nil {
			return err
		}
		if err := s.stores.Owners.Set(txCtx, p.ID, caller); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return 0, s.translateStoreErr(err, "failed to create product")
	}

	s.emit(ctx, notify.Event{
		Kind:      notify.KindProductCreated,
		Timestamp: now,
		ProductID: product.ID,
		Name:      product.Name,
		Origin:    product.Origin,
		Owner:     caller,
	})

	s.logger.InfoContext(ctx, "product created",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", product.ID,
		"owner", caller.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementProductsCreated()
		s.metrics.ObserveCreate(start)
	}
	return product.ID, nil
}

// TransferOwnership moves a product to a new owner. Preconditions are checked
// in order inside the transaction; any violation aborts with no effect:
//
//  1. the id must be within [1, productCount] - invalid_product
//  2. the caller must be the current owner - unauthorized
//     (a missing ownership record is invalid_product)
//  3. rawNewOwner must parse to a well-formed identity - invalid_owner
//
// Self-transfer is permitted and appends a trail entry like any other.
func (s *RegistryService) TransferOwnership(ctx context.Context, productID uint64, rawNewOwner string, caller id.Identity) error {
	start := time.Now()
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthenticated, "caller identity is required")
	}

	now := requestcontext.Now(ctx)
	var previousOwner, newOwner id.Identity
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		count, err := s.stores.Products.Count(txCtx)
		if err != nil {
			return err
		}
		if productID < 1 || productID > count {
			return dErrors.Newf(dErrors.CodeInvalidProduct, "product %d does not exist", productID)
		}

		currentOwner, err := s.stores.Owners.Get(txCtx, productID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeInvalidProduct, "product %d has no ownership record", productID)
			}
			return err
		}
		if currentOwner != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is not the current owner")
		}

		parsed, err := id.ParseIdentity(rawNewOwner)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidOwner, "new owner is not a valid identity")
		}

		if err := s.stores.Owners.Set(txCtx, productID, parsed); err != nil {
			return err
		}
		if err := s.stores.Trails.Append(txCtx, productID, models.CustodyEvent{
			Action:    models.ActionTransferred,
			Actor:     parsed,
			Timestamp: now,
		}); err != nil {
			return err
		}
		previousOwner = currentOwner
		newOwner = parsed
		return nil
	})
	if err != nil {
		err = s.translateStoreErr(err, "failed to transfer ownership")
		if s.metrics != nil {
			s.metrics.IncrementTransferFailures(string(dErrors.CodeOf(err)))
		}
		return err
	}

	s.emit(ctx, notify.Event{
		Kind:          notify.KindOwnershipTransferred,
		Timestamp:     now,
		ProductID:     productID,
		PreviousOwner: previousOwner,
		NewOwner:      newOwner,
	})

	s.logger.InfoContext(ctx, "ownership transferred",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", productID,
		"previous_owner", previousOwner.String(),
		"new_owner", newOwner.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementTransfers()
		s.metrics.ObserveTransfer(start)
	}
	return nil
}

// translateStoreErr passes domain errors through and wraps infrastructure
// failures so store internals never leak to callers.
func (s *RegistryService) translateStoreErr(err error, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "operation lost a concurrent commit, retry")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

// emit delivers a notification after commit. Delivery failure is logged, not
// returned: the operation has already committed and must not appear to fail.
func (s *RegistryService) emit(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event delivery failed",
			"request_id", requestcontext.RequestID(ctx),
			"kind", string(event.Kind),
			"product_id", event.ProductID,
			"error", err.Error(),
		)
	}
}
