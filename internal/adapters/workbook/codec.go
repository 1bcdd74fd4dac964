package workbook

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/khal/internal/models"
)

// cells is one raw sheet row.
type cells []string

func (c cells) get(cols columns, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(c) {
		return ""
	}
	return strings.TrimSpace(c[i])
}

func (c cells) blank() bool {
	for _, v := range c {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (c cells) isTaskMarker() bool {
	return len(c) > 0 && strings.EqualFold(strings.TrimSpace(c[0]), taskMarker)
}

// rowError explains why a row was skipped.
type rowError struct {
	field  string
	reason string
}

func (e *rowError) Error() string {
	if e.field == "" {
		return e.reason
	}
	return e.field + ": " + e.reason
}

func parseNumber(c cells, cols columns, field string) (float64, error) {
	raw := strings.TrimSuffix(c.get(cols, field), "%")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &rowError{field, fmt.Sprintf("invalid number %q", raw)}
	}
	return v, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// decodedAffair carries the domain cell text until it is resolved to an id.
type decodedAffair struct {
	affair models.Affair
	domain string
}

func (l layout) decodeAffair(c cells) (decodedAffair, error) {
	cols := l.affairs
	a := models.Affair{
		Title:       c.get(cols, fieldTitle),
		Timeline:    c.get(cols, fieldTimeline),
		Description: c.get(cols, fieldDescription),
		Status:      models.NormalizeStatus(c.get(cols, fieldStatus)),
	}
	if a.Title == "" {
		return decodedAffair{}, &rowError{fieldTitle, "missing title"}
	}

	var err error
	if a.Stakes, err = parseNumber(c, cols, fieldStakes); err != nil {
		return decodedAffair{}, err
	}
	if a.Risk, err = parseNumber(c, cols, fieldRisk); err != nil {
		return decodedAffair{}, err
	}
	if a.CompletionPct, err = parseNumber(c, cols, fieldCompletion); err != nil {
		return decodedAffair{}, err
	}
	if l.completionFraction {
		a.CompletionPct *= 100
	}
	a.Stakes = clamp(a.Stakes, 0, 10)
	a.Risk = clamp(a.Risk, 0, 10)
	a.CompletionPct = clamp(a.CompletionPct, 0, 100)

	return decodedAffair{affair: a, domain: c.get(cols, fieldDomain)}, nil
}

func (l layout) encodeAffair(a models.Affair, domain string) []any {
	completion := a.CompletionPct
	if l.completionFraction {
		completion /= 100
	}
	return row(affairHeader, map[string]any{
		fieldDomain:      domain,
		fieldTitle:       a.Title,
		fieldTimeline:    a.Timeline,
		fieldStakes:      a.Stakes,
		fieldRisk:        a.Risk,
		fieldFragility:   a.FragilityScore,
		fieldStatus:      string(a.Status),
		fieldCompletion:  completion,
		fieldDescription: a.Description,
	})
}

type decodedInterest struct {
	interest models.Interest
	domain   string
}

func (l layout) decodeInterest(c cells) (decodedInterest, error) {
	cols := l.interests
	in := models.Interest{
		Title:       c.get(cols, fieldTitle),
		Asymmetry:   c.get(cols, fieldAsymmetry),
		Upside:      c.get(cols, fieldUpside),
		Downside:    c.get(cols, fieldDownside),
		Status:      models.NormalizeStatus(c.get(cols, fieldStatus)),
		Notes:       c.get(cols, fieldNotes),
		Description: c.get(cols, fieldDescription),
	}
	if in.Title == "" {
		return decodedInterest{}, &rowError{fieldTitle, "missing title"}
	}

	var err error
	if in.Stakes, err = parseNumber(c, cols, fieldStakes); err != nil {
		return decodedInterest{}, err
	}
	if in.Risk, err = parseNumber(c, cols, fieldRisk); err != nil {
		return decodedInterest{}, err
	}
	if in.Convexity, err = parseNumber(c, cols, fieldConvexity); err != nil {
		return decodedInterest{}, err
	}
	in.Stakes = clamp(in.Stakes, 0, 10)
	in.Risk = clamp(in.Risk, 0, 10)
	in.Convexity = clamp(in.Convexity, 0, 10)

	return decodedInterest{interest: in, domain: c.get(cols, fieldDomain)}, nil
}

func (l layout) encodeInterest(in models.Interest, domain string) []any {
	return row(interestHeader, map[string]any{
		fieldDomain:      domain,
		fieldTitle:       in.Title,
		fieldStakes:      in.Stakes,
		fieldRisk:        in.Risk,
		fieldAsymmetry:   in.Asymmetry,
		fieldUpside:      in.Upside,
		fieldDownside:    in.Downside,
		fieldConvexity:   in.Convexity,
		fieldStatus:      string(in.Status),
		fieldNotes:       in.Notes,
		fieldDescription: in.Description,
	})
}

// decodeTask reads a task row. fallback is the source type implied by the
// sheet when the row leaves it blank.
func (l layout) decodeTask(c cells, fallback models.SourceType) (models.Task, error) {
	cols := l.tasks
	t := models.Task{
		SourceID:      c.get(cols, fieldSourceID),
		Title:         c.get(cols, fieldTitle),
		Status:        models.NormalizeStatus(c.get(cols, fieldStatus)),
		ParentTaskID:  c.get(cols, fieldParent),
		Notes:         c.get(cols, fieldNotes),
		DependencyIDs: splitList(c.get(cols, fieldDeps)),
		Horizon:       models.DefaultHorizon,
		SourceType:    fallback,
	}
	if t.Title == "" {
		return models.Task{}, &rowError{fieldTitle, "missing title"}
	}

	if raw := c.get(cols, fieldSourceType); raw != "" {
		st := models.SourceType(strings.ToUpper(raw))
		if !st.Valid() {
			return models.Task{}, &rowError{fieldSourceType, fmt.Sprintf("unknown source type %q", raw)}
		}
		t.SourceType = st
	}
	if raw := c.get(cols, fieldHorizon); raw != "" {
		if h := models.Horizon(strings.ToUpper(raw)); h.Valid() {
			t.Horizon = h
		}
	}
	if c.get(cols, fieldEffort) != "" {
		effort, err := parseNumber(c, cols, fieldEffort)
		if err != nil {
			return models.Task{}, err
		}
		t.EffortEstimate = &effort
	}
	t.DueDate = decodeDate(c.get(cols, fieldDue))

	return t, nil
}

func (l layout) encodeTask(t models.Task) []any {
	var effort any = ""
	if t.EffortEstimate != nil {
		effort = *t.EffortEstimate
	}
	return row(taskHeader, map[string]any{
		fieldSourceID:   t.SourceID,
		fieldTitle:      t.Title,
		fieldEffort:     effort,
		fieldDue:        t.DueDate,
		fieldStatus:     string(t.Status),
		fieldOwner:      "Self",
		fieldHorizon:    string(t.Horizon),
		fieldSourceType: string(t.SourceType),
		fieldDeps:       strings.Join(t.DependencyIDs, ", "),
		fieldParent:     t.ParentTaskID,
		fieldNotes:      t.Notes,
	})
}

// row lays values out in header order.
func row(h header, values map[string]any) []any {
	out := make([]any, len(h))
	for i, c := range h {
		if v, ok := values[c.field]; ok {
			out[i] = v
		} else {
			out[i] = ""
		}
	}
	return out
}

// emptyRow is used to clear a row in place.
func emptyRow(h header) []any {
	return row(h, nil)
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeDate turns a raw date serial into ISO form and keeps any other
// text as typed.
func decodeDate(raw string) string {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 1 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}
