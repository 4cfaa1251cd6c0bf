package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// jsonTable keeps column order alongside the row objects, which a JSON
// object alone does not.
type jsonTable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// WriteJSON writes t as {"columns": [...], "rows": [{column: value}]}.
// Missing cells are null.
func WriteJSON(w io.Writer, t *table.Table) error {
	out := jsonTable{
		Columns: t.Columns(),
		Rows:    make([]map[string]any, 0, t.NumRows()),
	}
	for i := 0; i < t.NumRows(); i++ {
		row := make(map[string]any, t.NumCols())
		for j, c := range t.Row(i) {
			if c.Valid {
				row[out.Columns[j]] = c.String
			} else {
				row[out.Columns[j]] = nil
			}
		}
		out.Rows = append(out.Rows, row)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
