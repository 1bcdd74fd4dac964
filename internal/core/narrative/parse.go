// Package narrative parses the free-form war room text into blocks.
package narrative

import (
	"strings"

	"github.com/example/khal/internal/models"
)

// Parse converts lines of war room text into blocks.
//
// A line starting with "## " opens a new block with that heading. "- "
// lines are bullets, "key: value" lines become key/value pairs and any
// other non-blank line is kept as a bullet. Text before the first heading
// forms an untitled block, emitted only when it has content.
func Parse(lines []string) []models.NarrativeBlock {
	var blocks []models.NarrativeBlock
	current := newBlock("")

	flush := func() {
		if !current.Empty() {
			blocks = append(blocks, current)
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if heading, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			current = newBlock(strings.TrimSpace(heading))
			continue
		}

		if bullet, ok := strings.CutPrefix(line, "- "); ok {
			current.Bullets = append(current.Bullets, strings.TrimSpace(bullet))
			continue
		}

		if i := strings.Index(line, ":"); i > 0 {
			current.KV[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
			continue
		}

		current.Bullets = append(current.Bullets, line)
	}
	flush()

	return blocks
}

// Lines flattens rows of cells into the line sequence Parse expects,
// reading cells left to right and rows top to bottom.
func Lines(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		for _, cell := range row {
			if s := strings.TrimSpace(cell); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func newBlock(heading string) models.NarrativeBlock {
	return models.NarrativeBlock{Heading: heading, KV: map[string]string{}, Bullets: []string{}}
}
