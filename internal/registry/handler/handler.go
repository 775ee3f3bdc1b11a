package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/middleware"
	"provenance/internal/registry/service"
	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// Registry defines the mutating operations the handler needs.
type Registry interface {
	CreateProduct(ctx context.Context, name, origin string, caller id.Identity) (uint64, error)
	TransferOwnership(ctx context.Context, productID uint64, rawNewOwner string, caller id.Identity) error
}

// Queries defines the read-only operations the handler needs.
type Queries interface {
	GetProduct(ctx context.Context, productID uint64) (*service.ProductDetails, error)
	GetMovements(ctx context.Context, productID uint64, page service.MovementsPage) (*service.Movements, error)
	GetProductsOwnedBy(ctx context.Context, owner id.Identity) ([]uint64, error)
}

// Handler wires registry endpoints to the services.
type Handler struct {
	registry  Registry
	queries   Queries
	logger    *slog.Logger
	validator middleware.IdentityValidator
}

func New(registry Registry, queries Queries, logger *slog.Logger, validator middleware.IdentityValidator) *Handler {
	return &Handler{
		registry:  registry,
		queries:   queries,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the registry routes with the full middleware stack.
func (h *Handler) Register(r chi.Router) {
	registryRouter := chi.NewRouter()
	registryRouter.Use(middleware.Recovery(h.logger))
	registryRouter.Use(middleware.RequestID)
	registryRouter.Use(middleware.RequestTime)
	registryRouter.Use(middleware.Logger(h.logger))
	registryRouter.Use(middleware.Timeout(30 * time.Second))
	registryRouter.Use(middleware.ContentTypeJSON)
	registryRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	registryRouter.Post("/products", h.handleCreateProduct)
	registryRouter.Get("/products/{id}", h.handleGetProduct)
	registryRouter.Post("/products/{id}/transfer", h.handleTransfer)
	registryRouter.Get("/products/{id}/movements", h.handleGetMovements)
	registryRouter.Get("/owners/{owner}/products", h.handleGetOwnedProducts)

	r.Mount("/", registryRouter)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateProductRequest](w, r, h.logger)
	if !ok {
		return
	}

	productID, err := h.registry.CreateProduct(ctx, req.Name, req.Origin, caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create product",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, CreateProductResponse{ID: productID})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.registry.TransferOwnership(ctx, productID, req.NewOwner, caller); err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to transfer ownership",
				"request_id", requestID,
				"product_id", productID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	details, err := h.queries.GetProduct(ctx, productID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromDetails(details))
}

func (h *Handler) handleGetMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, ok := h.productIDParam(w, r)
	if !ok {
		return
	}

	page, ok := h.pageParams(w, r)
	if !ok {
		return
	}

	movements, err := h.queries.GetMovements(ctx, productID, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromMovements(movements))
}

func (h *Handler) handleGetOwnedProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := id.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "owner is not a valid identity"))
		return
	}

	products, err := h.queries.GetProductsOwnedBy(ctx, owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, OwnedProductsResponse{
		Owner:    owner.String(),
		Products: products,
	})
}

// requireCaller reads the identity the auth middleware verified. Absence
// means the middleware stack is miswired, not a caller mistake.
func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (id.Identity, bool) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller, true
}

func (h *Handler) productIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	productID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "product id must be a positive integer"))
		return 0, false
	}
	return productID, true
}

func (h *Handler) pageParams(w http.ResponseWriter, r *http.Request) (service.MovementsPage, bool) {
	var page service.MovementsPage
	query := r.URL.Query()
	for name, dst := range map[string]*int{"offset": &page.Offset, "limit": &page.Limit} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "%s must be a non-negative integer", name))
			return service.MovementsPage{}, false
		}
		*dst = value
	}
	return page, true
}
