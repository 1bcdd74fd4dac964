package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	lines := []string{
		"War room for 2026",
		"",
		"## Health",
		"domain: health",
		"stakes: high",
		"- sleep 8h",
		"walk daily",
		"## Money",
		"- keep six months cash",
	}

	blocks := Parse(lines)
	require.Len(t, blocks, 3)

	assert.Equal(t, "", blocks[0].Heading)
	assert.Equal(t, []string{"War room for 2026"}, blocks[0].Bullets)

	assert.Equal(t, "Health", blocks[1].Heading)
	assert.Equal(t, map[string]string{"domain": "health", "stakes": "high"}, blocks[1].KV)
	assert.Equal(t, []string{"sleep 8h", "walk daily"}, blocks[1].Bullets)

	assert.Equal(t, "Money", blocks[2].Heading)
	assert.Empty(t, blocks[2].KV)
}

func TestParseSkipsEmptyRoot(t *testing.T) {
	blocks := Parse([]string{"   ", "## Only"})
	require.Len(t, blocks, 1)
	assert.Equal(t, "Only", blocks[0].Heading)
}

func TestParseLeadingColonIsBullet(t *testing.T) {
	blocks := Parse([]string{":not a key"})
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{":not a key"}, blocks[0].Bullets)
}

func TestLines(t *testing.T) {
	rows := [][]string{{"## A", " "}, {}, {"x: 1", "- b"}}
	assert.Equal(t, []string{"## A", "x: 1", "- b"}, Lines(rows))
}
