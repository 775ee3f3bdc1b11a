package handler

// CreateProductRequest registers a new product. Name and origin are free-form
// and may be empty; the registry records them verbatim.
type CreateProductRequest struct {
	Name   string `json:"name"`
	Origin string `json:"origin"`
}

// TransferRequest moves a product to a new owner. The caller must be the
// current owner; the new owner is validated by the registry.
type TransferRequest struct {
	NewOwner string `json:"new_owner"`
}
