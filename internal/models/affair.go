package models

import "time"

// Affair is a defensive commitment tracked against a domain and scored by
// stakes times risk.
type Affair struct {
	ID             string    `json:"id"`
	DomainID       string    `json:"domainId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Timeline       string    `json:"timeline,omitempty"`
	Stakes         float64   `json:"stakes"`
	Risk           float64   `json:"risk"`
	FragilityScore float64   `json:"fragilityScore"`
	Status         Status    `json:"status"`
	CompletionPct  float64   `json:"completionPct"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
