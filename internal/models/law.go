package models

import "time"

// Law is a top-level category of volatility linked to the crafts that
// address it.
type Law struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	VolatilitySource string    `json:"volatilitySource,omitempty"`
	CraftIDs         []string  `json:"associatedCrafts"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
