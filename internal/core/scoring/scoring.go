// Package scoring computes derived metrics and the do-now ranking.
// Every function here is pure.
package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/example/khal/internal/models"
)

// DoNowLimit is the number of items RankDoNow returns.
const DoNowLimit = 10

// Score bounds for stakes, risk and convexity.
const (
	MinScore = 0
	MaxScore = 10
)

// Clamp bounds v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FragilityScore is clamp(stakes) * clamp(risk).
func FragilityScore(stakes, risk float64) float64 {
	return Clamp(stakes, MinScore, MaxScore) * Clamp(risk, MinScore, MaxScore)
}

// ConvexityScore is clamp(convexity) * clamp(stakes).
func ConvexityScore(convexity, stakes float64) float64 {
	return Clamp(convexity, MinScore, MaxScore) * Clamp(stakes, MinScore, MaxScore)
}

// OptionalityIndex sums the convexity score of every interest.
func OptionalityIndex(interests []models.Interest) float64 {
	var total float64
	for _, in := range interests {
		total += ConvexityScore(in.Convexity, in.Stakes)
	}
	return total
}

// RobustnessProgress is the fragility-weighted completion of all affairs as
// a percentage rounded to two decimals. It is 0 when no affair carries any
// fragility.
func RobustnessProgress(affairs []models.Affair) float64 {
	var weighted, denominator float64
	for _, a := range affairs {
		f := FragilityScore(a.Stakes, a.Risk)
		weighted += f * Clamp(a.CompletionPct, 0, 100)
		denominator += f * 100
	}
	if denominator == 0 {
		return 0
	}
	return round2(100 * weighted / denominator)
}

// HorizonWeight ranks nearer horizons higher.
func HorizonWeight(h models.Horizon) float64 {
	switch h {
	case models.HorizonWeek:
		return 4
	case models.HorizonMonth:
		return 3
	case models.HorizonQuarter:
		return 2
	case models.HorizonYear:
		return 1
	}
	return 0
}

// RankDoNow merges affairs, interests and tasks into one list sorted by
// score descending, ties broken by ascending title, and returns the top
// DoNowLimit entries.
func RankDoNow(affairs []models.Affair, interests []models.Interest, tasks []models.Task) []models.DoNowItem {
	items := make([]models.DoNowItem, 0, len(affairs)+len(interests)+len(tasks))

	for _, a := range affairs {
		score := FragilityScore(a.Stakes, a.Risk)
		items = append(items, models.DoNowItem{
			RefType: models.RefAffair,
			RefID:   a.ID,
			Title:   a.Title,
			Score:   score,
			Why:     "fragility=" + formatNumber(score),
		})
	}
	for _, in := range interests {
		score := ConvexityScore(in.Convexity, in.Stakes)
		items = append(items, models.DoNowItem{
			RefType: models.RefInterest,
			RefID:   in.ID,
			Title:   in.Title,
			Score:   score,
			Why:     "convexity*stakes=" + formatNumber(score),
		})
	}
	for _, t := range tasks {
		items = append(items, models.DoNowItem{
			RefType: models.RefTask,
			RefID:   t.ID,
			Title:   t.Title,
			Score:   HorizonWeight(t.Horizon) * 10,
			Why:     "horizon=" + string(t.Horizon),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return compareTitles(items[i].Title, items[j].Title) < 0
	})

	if len(items) > DoNowLimit {
		items = items[:DoNowLimit]
	}
	return items
}

// compareTitles orders case-insensitively, falling back to byte order so
// the result is total.
func compareTitles(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
