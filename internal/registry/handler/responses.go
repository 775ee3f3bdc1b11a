package handler

import (
	"provenance/internal/registry/service"
)

type CreateProductResponse struct {
	ID uint64 `json:"id"`
}

type ProductResponse struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Origin string `json:"origin"`
	Owner  string `json:"owner"`
}

type MovementsResponse struct {
	Actions    string   `json:"actions"`
	Actors     []string `json:"actors"`
	Timestamps []int64  `json:"timestamps"`
}

type OwnedProductsResponse struct {
	Owner    string   `json:"owner"`
	Products []uint64 `json:"products"`
}

func fromDetails(details *service.ProductDetails) ProductResponse {
	return ProductResponse{
		ID:     details.ID,
		Name:   details.Name,
		Origin: details.Origin,
		Owner:  details.Owner.String(),
	}
}

func fromMovements(movements *service.Movements) MovementsResponse {
	actors := make([]string, len(movements.Actors))
	for i, actor := range movements.Actors {
		actors[i] = actor.String()
	}
	return MovementsResponse{
		Actions:    movements.Actions,
		Actors:     actors,
		Timestamps: movements.Timestamps,
	}
}
