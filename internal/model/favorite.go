package model

import "time"

// Favorite is one favorited product of a customer at an establishment.
type Favorite struct {
	CustomerID      string    `json:"customer_id"`
	EstablishmentID string    `json:"establishment_id"`
	ProductID       string    `json:"product_id"`
	CreatedAt       time.Time `json:"created_at"`
}
