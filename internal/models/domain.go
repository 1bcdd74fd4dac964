package models

import (
	"strings"
	"time"
)

// DefaultDomainID is assigned to affairs and interests created without a domain.
const DefaultDomainID = "general"

// Domain groups affairs and interests. Domains are never deleted.
type Domain struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DomainIDFromName derives the slug id used for a human-entered domain name.
func DomainIDFromName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	if len(fields) == 0 {
		return DefaultDomainID
	}
	return strings.Join(fields, "-")
}

// AutoDomain builds the domain record created when a write references an
// unknown domain id.
func AutoDomain(id string, now time.Time) Domain {
	return Domain{
		ID:          id,
		Name:        strings.ReplaceAll(id, "-", " "),
		Description: "Auto-created domain",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
