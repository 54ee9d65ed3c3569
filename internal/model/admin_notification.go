package model

import (
	"encoding/json"
	"time"
)

// Admin notification kinds raised by backend logic.
const (
	AdminKindNewEstablishment = "new_establishment"
	AdminKindResellerSale     = "reseller_sale"
)

type AdminNotification struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	EstablishmentID string          `json:"establishment_id,omitempty"`
	ResellerID      string          `json:"reseller_id,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Read            bool            `json:"read"`
	CreatedAt       time.Time       `json:"created_at"`
}
