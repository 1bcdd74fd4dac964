// Package models contains domain types for KHAL entities.
// Persistence lives in internal/adapters/{sqlite,workbook}.
package models

import "time"

// SourceType identifies the kind of entity a task was spawned from.
type SourceType string

// Task source constants
const (
	SourceAffair      SourceType = "AFFAIR"
	SourceInterest    SourceType = "INTEREST"
	SourcePlan        SourceType = "PLAN"
	SourcePreparation SourceType = "PREPARATION"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceAffair, SourceInterest, SourcePlan, SourcePreparation:
		return true
	}
	return false
}

// Horizon is the time horizon a task is planned against.
type Horizon string

// Horizon constants
const (
	HorizonWeek    Horizon = "WEEK"
	HorizonMonth   Horizon = "MONTH"
	HorizonQuarter Horizon = "QUARTER"
	HorizonYear    Horizon = "YEAR"
)

// DefaultHorizon is used when a task is created without one.
const DefaultHorizon = HorizonWeek

// Valid reports whether h is a known horizon.
func (h Horizon) Valid() bool {
	switch h {
	case HorizonWeek, HorizonMonth, HorizonQuarter, HorizonYear:
		return true
	}
	return false
}

// Task is an actionable unit of work attached to an affair, interest,
// plan or preparation.
type Task struct {
	ID             string     `json:"id"`
	SourceType     SourceType `json:"sourceType"`
	SourceID       string     `json:"sourceId"`
	ParentTaskID   string     `json:"parentTaskId,omitempty"`
	DependencyIDs  []string   `json:"dependencyIds"`
	Title          string     `json:"title"`
	Notes          string     `json:"notes,omitempty"`
	Horizon        Horizon    `json:"horizon"`
	DueDate        string     `json:"dueDate,omitempty"`
	Status         Status     `json:"status"`
	EffortEstimate *float64   `json:"effortEstimate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share slices with storage.
func (t Task) Clone() Task {
	out := t
	out.DependencyIDs = append([]string(nil), t.DependencyIDs...)
	if t.EffortEstimate != nil {
		v := *t.EffortEstimate
		out.EffortEstimate = &v
	}
	return out
}
