// Package workbook implements the spreadsheet backend. Affairs, interests
// and tasks live as human-editable rows on visible sheets; everything the
// sheets cannot express (row identity, timestamps, crafts, laws, history)
// lives on hidden companion sheets written alongside them.
package workbook

import (
	"fmt"
	"strings"
)

// Required sheet names as shown to users.
const (
	SheetWarRoom   = "War Room"
	SheetAffairs   = "Affairs"
	SheetInterests = "Interests"
)

// interestsAlias is the historical misspelling accepted for Interests.
const interestsAlias = "Intrests"

// Workbook versions. The version selects the column layout used to decode
// and encode rows.
const (
	LegacyVersion  = "0.1"
	CurrentVersion = "0.2"
	SchemaHash     = "khal-v0.1"
)

// taskMarker is the cell that opens the task region on a sheet. The row
// after it holds the task header.
const taskMarker = "TASK TRACKING"

// Row field names used by the column mappings.
const (
	fieldDomain      = "domain"
	fieldTitle       = "title"
	fieldTimeline    = "timeline"
	fieldStakes      = "stakes"
	fieldRisk        = "risk"
	fieldFragility   = "fragility"
	fieldStatus      = "status"
	fieldCompletion  = "completion"
	fieldDescription = "description"
	fieldAsymmetry   = "asymmetry"
	fieldUpside      = "upside"
	fieldDownside    = "downside"
	fieldConvexity   = "convexity"
	fieldNotes       = "notes"
	fieldSourceID    = "source_id"
	fieldEffort      = "effort"
	fieldDue         = "due"
	fieldOwner       = "owner"
	fieldHorizon     = "horizon"
	fieldSourceType  = "source_type"
	fieldDeps        = "dependencies"
	fieldParent      = "parent"
)

// columns maps a field name to its zero-based column index.
type columns map[string]int

// header is an ordered list of field names with their display titles.
type header []struct{ field, title string }

func (h header) columns() columns {
	out := make(columns, len(h))
	for i, c := range h {
		out[c.field] = i
	}
	return out
}

func (h header) titles() []any {
	out := make([]any, len(h))
	for i, c := range h {
		out[i] = c.title
	}
	return out
}

var affairHeader = header{
	{fieldDomain, "Domain"},
	{fieldTitle, "Affair"},
	{fieldTimeline, "Timeline"},
	{fieldStakes, "Stakes"},
	{fieldRisk, "Risk"},
	{fieldFragility, "Fragility"},
	{fieldStatus, "Status"},
	{fieldCompletion, "Completion"},
	{fieldDescription, "Description"},
}

var interestHeader = header{
	{fieldDomain, "Domain"},
	{fieldTitle, "Interest"},
	{fieldStakes, "Stakes"},
	{fieldRisk, "Risk"},
	{fieldAsymmetry, "Asymmetry"},
	{fieldUpside, "Upside"},
	{fieldDownside, "Downside"},
	{fieldConvexity, "Convexity"},
	{fieldStatus, "Status"},
	{fieldNotes, "Notes"},
	{fieldDescription, "Description"},
}

var taskHeader = header{
	{fieldSourceID, "Source"},
	{fieldTitle, "Task"},
	{fieldEffort, "Effort"},
	{fieldDue, "Due"},
	{fieldStatus, "Status"},
	{fieldOwner, "Owner"},
	{fieldHorizon, "Horizon"},
	{fieldSourceType, "Source Type"},
	{fieldDeps, "Depends On"},
	{fieldParent, "Parent"},
	{fieldNotes, "Notes"},
}

// layout is the versioned row mapping of the visible sheets.
type layout struct {
	version string
	// headerRow is the 1-based row holding the entity header. Data starts
	// on the row after it.
	headerRow int
	// banner is written above the header when headerRow > 1.
	banner bool
	// completionFraction stores completion as 0..1 instead of 0..100.
	completionFraction bool

	affairs   columns
	interests columns
	tasks     columns
}

var layouts = map[string]layout{
	LegacyVersion: {
		version:   LegacyVersion,
		headerRow: 1,
		affairs:   affairHeader.columns(),
		interests: interestHeader.columns(),
		tasks:     taskHeader.columns(),
	},
	CurrentVersion: {
		version:            CurrentVersion,
		headerRow:          2,
		banner:             true,
		completionFraction: true,
		affairs:            affairHeader.columns(),
		interests:          interestHeader.columns(),
		tasks:              taskHeader.columns(),
	},
}

func layoutFor(version string) (layout, error) {
	if version == "" {
		version = LegacyVersion
	}
	l, ok := layouts[version]
	if !ok {
		return layout{}, fmt.Errorf("unsupported workbook version %q", version)
	}
	return l, nil
}

// normalizeSheetName folds case and collapses whitespace.
func normalizeSheetName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// requiredSheets lists the logical names every workbook must carry with the
// normalized spellings accepted for each.
var requiredSheets = []struct {
	name    string
	label   string
	accepts []string
}{
	{SheetWarRoom, SheetWarRoom, []string{normalizeSheetName(SheetWarRoom)}},
	{SheetAffairs, SheetAffairs, []string{normalizeSheetName(SheetAffairs)}},
	{SheetInterests, SheetInterests + " (or " + interestsAlias + ")", []string{
		normalizeSheetName(SheetInterests), normalizeSheetName(interestsAlias),
	}},
}

// resolveSheets maps each required logical name to the actual sheet name
// present in the workbook and lists the ones that are missing.
func resolveSheets(present []string) (map[string]string, []string) {
	byNorm := make(map[string]string, len(present))
	for _, name := range present {
		n := normalizeSheetName(name)
		if _, seen := byNorm[n]; !seen {
			byNorm[n] = name
		}
	}

	resolved := make(map[string]string, len(requiredSheets))
	var missing []string
	for _, req := range requiredSheets {
		found := false
		for _, accept := range req.accepts {
			if actual, ok := byNorm[accept]; ok {
				resolved[req.name] = actual
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, "Missing required sheet: "+req.label)
		}
	}
	return resolved, missing
}
