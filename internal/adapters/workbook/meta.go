package workbook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const metaSheet = "_khal_meta"

// Meta keys stored on the hidden metadata sheet.
const (
	metaWorkbookVersion = "workbook_version"
	metaLastWrite       = "last_app_write_timestamp"
	metaLastLoaded      = "last_loaded_timestamp"
	metaSchemaHash      = "schema_hash"
	metaIDMap           = "id_map"
)

// maxCellChars is the spreadsheet limit on text in a single cell. Longer
// values are split across the following cells of the same row.
const maxCellChars = excelize.TotalCellChars

// meta is the decoded metadata sheet.
type meta struct {
	version    string
	lastWrite  string
	lastLoaded string
	schemaHash string
	ids        idMap
}

func readMeta(f *excelize.File) (meta, error) {
	m := meta{version: LegacyVersion, schemaHash: SchemaHash, ids: idMap{}}
	if idx, err := f.GetSheetIndex(metaSheet); err != nil || idx < 0 {
		return m, nil
	}

	rows, err := f.GetRows(metaSheet)
	if err != nil {
		return m, fmt.Errorf("failed to read %s: %w", metaSheet, err)
	}
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		value := strings.Join(r[1:], "")
		switch strings.TrimSpace(r[0]) {
		case metaWorkbookVersion:
			if v := strings.TrimSpace(value); v != "" {
				m.version = v
			}
		case metaLastWrite:
			m.lastWrite = value
		case metaLastLoaded:
			m.lastLoaded = value
		case metaSchemaHash:
			m.schemaHash = value
		case metaIDMap:
			if strings.TrimSpace(value) == "" {
				continue
			}
			if err := json.Unmarshal([]byte(value), &m.ids); err != nil {
				return m, fmt.Errorf("failed to decode %s: %w", metaIDMap, err)
			}
		}
	}
	return m, nil
}

func writeMeta(f *excelize.File, m meta) error {
	ids, err := json.Marshal(m.ids)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", metaIDMap, err)
	}

	rows := [][]any{
		{"key", "value"},
		{metaWorkbookVersion, m.version},
		{metaLastWrite, m.lastWrite},
		{metaLastLoaded, m.lastLoaded},
		{metaSchemaHash, m.schemaHash},
		append([]any{metaIDMap}, chunk(string(ids), maxCellChars)...),
	}
	return replaceSheet(f, metaSheet, rows)
}

// chunk splits s into pieces of at most size characters. Cuts fall on
// rune boundaries because cell limits count characters, not bytes.
func chunk(s string, size int) []any {
	var out []any
	count, start := 0, 0
	for i := range s {
		if count == size {
			out = append(out, s[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(out, s[start:])
}

// idMap assigns stable ids to sheet rows. Keys are "<Sheet>!<row>" for
// entity rows and "<Sheet>!task-<row>" for task rows, using the logical
// sheet name and the 1-based row number.
type idMap map[string]string

func entityKey(sheet string, row int) string {
	return sheet + "!" + strconv.Itoa(row)
}

func taskKey(sheet string, row int) string {
	return sheet + "!task-" + strconv.Itoa(row)
}

// shift moves every key of sheet at row from or later down by n rows.
func (m idMap) shift(sheet string, from, n int) {
	moved := map[string]string{}
	for k, v := range m {
		rest, ok := strings.CutPrefix(k, sheet+"!")
		if !ok {
			continue
		}
		task := false
		if r, isTask := strings.CutPrefix(rest, "task-"); isTask {
			rest, task = r, true
		}
		row, err := strconv.Atoi(rest)
		if err != nil || row < from {
			continue
		}
		delete(m, k)
		if task {
			moved[taskKey(sheet, row+n)] = v
		} else {
			moved[entityKey(sheet, row+n)] = v
		}
	}
	for k, v := range moved {
		m[k] = v
	}
}
