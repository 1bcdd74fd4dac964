package models

// NarrativeBlock is one structured section parsed from free text.
type NarrativeBlock struct {
	Heading string            `json:"heading,omitempty"`
	KV      map[string]string `json:"kv"`
	Bullets []string          `json:"bullets"`
}

// Empty reports whether the block carries no content at all.
func (b NarrativeBlock) Empty() bool {
	return b.Heading == "" && len(b.KV) == 0 && len(b.Bullets) == 0
}

// Narrative is the read-only war room view.
type Narrative struct {
	Meta   map[string]string `json:"meta,omitempty"`
	Blocks []NarrativeBlock  `json:"blocks"`
}
