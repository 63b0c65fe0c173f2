package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

type countResponse struct {
	Count int `json:"count"`
}
