package models

import (
	"fmt"
	"time"
)

// CraftLevel names one of the five linked collections inside a craft.
type CraftLevel string

// Craft levels, leaf first.
const (
	LevelHeap      CraftLevel = "heaps"
	LevelModel     CraftLevel = "models"
	LevelFramework CraftLevel = "frameworks"
	LevelBarbell   CraftLevel = "barbell-strategies"
	LevelHeuristic CraftLevel = "heuristics"
)

// CraftLevels lists the levels from leaf to root.
var CraftLevels = []CraftLevel{LevelHeap, LevelModel, LevelFramework, LevelBarbell, LevelHeuristic}

// ParseCraftLevel accepts the canonical level names plus a few singular
// spellings used on the command line.
func ParseCraftLevel(s string) (CraftLevel, error) {
	switch s {
	case "heaps", "heap":
		return LevelHeap, nil
	case "models", "model":
		return LevelModel, nil
	case "frameworks", "framework":
		return LevelFramework, nil
	case "barbell-strategies", "barbell-strategy", "barbells", "barbell":
		return LevelBarbell, nil
	case "heuristics", "heuristic":
		return LevelHeuristic, nil
	}
	return "", fmt.Errorf("unknown craft level %q", s)
}

// Child returns the level this level references, if any.
func (l CraftLevel) Child() (CraftLevel, bool) {
	switch l {
	case LevelModel:
		return LevelHeap, true
	case LevelFramework:
		return LevelModel, true
	case LevelBarbell:
		return LevelFramework, true
	case LevelHeuristic:
		return LevelBarbell, true
	}
	return "", false
}

// DefaultTitle is used when an entity is written without a title.
func (l CraftLevel) DefaultTitle() string {
	switch l {
	case LevelHeap:
		return "Untitled Heap"
	case LevelModel:
		return "Untitled Model"
	case LevelFramework:
		return "Untitled Framework"
	case LevelBarbell:
		return "Untitled Barbell"
	case LevelHeuristic:
		return "Untitled Heuristic"
	}
	return "Untitled"
}

// DefaultHeapType is the heap type used when none is given.
const DefaultHeapType = "link"

// Craft is a named bundle of five ordered, linked collections.
type Craft struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Heaps             []Heap            `json:"heaps"`
	Models            []CraftModel      `json:"models"`
	Frameworks        []Framework       `json:"frameworks"`
	BarbellStrategies []BarbellStrategy `json:"barbellStrategies"`
	Heuristics        []Heuristic       `json:"heuristics"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Heap is a leaf reference to a link or file.
type Heap struct {
	ID      string `json:"id"`
	CraftID string `json:"craftId"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// CraftModel references heaps.
type CraftModel struct {
	ID          string   `json:"id"`
	CraftID     string   `json:"craftId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	HeapIDs     []string `json:"heapIds"`
}

// Framework references models.
type Framework struct {
	ID          string   `json:"id"`
	CraftID     string   `json:"craftId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ModelIDs    []string `json:"modelIds"`
}

// BarbellStrategy pairs a hedge with an edge and references frameworks.
type BarbellStrategy struct {
	ID           string   `json:"id"`
	CraftID      string   `json:"craftId"`
	Title        string   `json:"title"`
	Hedge        string   `json:"hedge,omitempty"`
	Edge         string   `json:"edge,omitempty"`
	FrameworkIDs []string `json:"frameworkIds"`
}

// Heuristic carries rule text and references barbell strategies.
type Heuristic struct {
	ID                 string   `json:"id"`
	CraftID            string   `json:"craftId"`
	Title              string   `json:"title"`
	Content            string   `json:"content,omitempty"`
	BarbellStrategyIDs []string `json:"barbellStrategyIds"`
}

// CraftEntity is the level-agnostic shape both backends persist. Only the
// fields relevant to Level are meaningful.
type CraftEntity struct {
	ID          string
	CraftID     string
	Level       CraftLevel
	Title       string
	Type        string
	URL         string
	Notes       string
	Description string
	Hedge       string
	Edge        string
	Content     string
	SortOrder   int
	RefIDs      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CraftLink is one ordered reference from a parent entity to a child.
type CraftLink struct {
	Level     CraftLevel
	SourceID  string
	TargetID  string
	SortOrder int
}
