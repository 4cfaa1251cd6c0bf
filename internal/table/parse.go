package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoColumns is returned for input with no header row.
	ErrNoColumns = errors.New("no columns to parse from file")

	// ErrMalformed is returned when the delimited text cannot be tokenized,
	// including rows with more fields than the header.
	ErrMalformed = errors.New("invalid csv")
)

// naValues are field values read as missing cells. Matches the default
// missing-value markers of the spreadsheet tooling the files come from.
var naValues = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsNA reports whether a raw field value is read as a missing cell.
func IsNA(s string) bool {
	return naValues[s]
}

// Parse decodes data with the named encoding and parses it as
// comma-separated text whose first record is the header.
//
// Rows shorter than the header are padded with missing cells. Rows longer
// than the header fail with ErrMalformed. Duplicate header names become
// name, name.1, name.2.
func Parse(data []byte, encodingName string) (*Table, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	text, err := enc.Decode(data)
	if err != nil {
		return nil, err
	}
	return ParseText(text)
}

// ParseText parses already-decoded comma-separated text.
func ParseText(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	columns := dedupeNames(header)
	var rows [][]Cell

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if len(rec) > len(columns) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d",
				ErrMalformed, len(columns), line, len(rec))
		}

		row := make([]Cell, len(columns))
		for i, v := range rec {
			if !IsNA(v) {
				row[i] = Text(v)
			}
		}
		rows = append(rows, row)
	}

	return build(columns, rows), nil
}
