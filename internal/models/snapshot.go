package models

import "time"

// Backend names the storage implementation behind a locator.
type Backend string

// Backend constants
const (
	BackendSQLite   Backend = "sqlite"
	BackendWorkbook Backend = "workbook"
)

// State is every persisted entity at load time.
type State struct {
	Domains   []Domain   `json:"domains"`
	Affairs   []Affair   `json:"affairs"`
	Interests []Interest `json:"interests"`
	Tasks     []Task     `json:"tasks"`
	Crafts    []Craft    `json:"crafts"`
	Laws      []Law      `json:"laws"`
	Narrative Narrative  `json:"warRoomNarrative"`
}

// RefType identifies the entity behind a ranked item.
type RefType string

// RefType constants
const (
	RefAffair   RefType = "AFFAIR"
	RefInterest RefType = "INTEREST"
	RefTask     RefType = "TASK"
)

// DoNowItem is one entry of the priority ranking.
type DoNowItem struct {
	RefType RefType `json:"refType"`
	RefID   string  `json:"refId"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Why     string  `json:"why"`
}

// Dashboard holds aggregates derived from State.
type Dashboard struct {
	DoNow              []DoNowItem `json:"doNow"`
	OptionalityIndex   float64     `json:"optionalityIndex"`
	RobustnessProgress float64     `json:"robustnessProgress"`
}

// SkippedRow records a workbook row that could not be decoded.
type SkippedRow struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// SyncInfo describes the backend file a snapshot was read from.
type SyncInfo struct {
	Backend       Backend      `json:"backend"`
	Path          string       `json:"path"`
	ModifiedAt    time.Time    `json:"modifiedAt"`
	LoadedAt      time.Time    `json:"lastLoadedAt"`
	Stale         bool         `json:"stale"`
	SourceOfTruth string       `json:"sourceOfTruth,omitempty"`
	SchemaVersion string       `json:"schemaVersion,omitempty"`
	SkippedRows   []SkippedRow `json:"skippedRows,omitempty"`
}

// Snapshot is the aggregate returned by a state load.
type Snapshot struct {
	State     State     `json:"state"`
	Dashboard Dashboard `json:"dashboard"`
	Sync      SyncInfo  `json:"sync"`
}
