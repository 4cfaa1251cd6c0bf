package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes t as comma-separated UTF-8 text with a header row and no
// index column. Missing cells are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	for i, rec := range t.Records() {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCSV returns the WriteCSV encoding of t.
func MarshalCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
