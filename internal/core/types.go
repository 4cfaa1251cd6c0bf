package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// Procedure keys.
const (
	ProcedureLayout  = "layout"
	ProcedureRawData = "rawdata"
)

// Input names, used in failures and as upload form field names.
const (
	InputLayout    = "layout"
	InputStyleList = "stylelist"
	InputRawData   = "rawdata"
)

// Result is the output of one procedure run. The caller owns it; the core
// keeps no reference after returning.
type Result struct {
	RunID     uuid.UUID
	Procedure string
	Table     *table.Table

	// Empty is true when the run succeeded but no rows qualified. Table is
	// then a zero-row table that still carries the output header.
	Empty bool

	// Diagnostics are advisory messages for display: input shapes, column
	// listings, intermediate row counts, substitutions.
	Diagnostics []string

	Duration time.Duration
}

// Rows returns the number of rows in the result table.
func (r *Result) Rows() int {
	if r == nil || r.Table == nil {
		return 0
	}
	return r.Table.NumRows()
}

// diagnostics accumulates advisory messages for a run.
type diagnostics []string

func (d *diagnostics) addf(format string, args ...any) {
	*d = append(*d, fmt.Sprintf(format, args...))
}

func (d *diagnostics) shape(name string, t *table.Table) {
	d.addf("%s: %d rows, %d columns", name, t.NumRows(), t.NumCols())
}

func (d *diagnostics) columns(name string, t *table.Table) {
	d.addf("%s columns: %s", name, strings.Join(t.Columns(), ", "))
}

func newResult(procedure string, t *table.Table, diag diagnostics, start time.Time) *Result {
	return &Result{
		RunID:       uuid.New(),
		Procedure:   procedure,
		Table:       t,
		Empty:       t.NumRows() == 0,
		Diagnostics: []string(diag),
		Duration:    time.Since(start),
	}
}

// parseInput parses one upload and tags failures with the input name.
func parseInput(name string, data []byte, encoding string) (*table.Table, error) {
	t, err := table.Parse(data, encoding)
	if err != nil {
		return nil, parseFailure(name, err)
	}
	return t, nil
}
