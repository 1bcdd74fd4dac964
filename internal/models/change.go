package models

import "time"

// Change actions recorded in the history.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// ChangeEntry is one row of the write history kept inside the backend.
type ChangeEntry struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor,omitempty"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"createdAt"`
}
