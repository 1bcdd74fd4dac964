package models

import "time"

// Interest is an asymmetric bet tracked against a domain.
type Interest struct {
	ID          string    `json:"id"`
	DomainID    string    `json:"domainId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Stakes      float64   `json:"stakes"`
	Risk        float64   `json:"risk"`
	Convexity   float64   `json:"convexity"`
	Asymmetry   string    `json:"asymmetry,omitempty"`
	Upside      string    `json:"upside,omitempty"`
	Downside    string    `json:"downside,omitempty"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
