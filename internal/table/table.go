// Package table provides the in-memory tabular model used by the pipeline:
// ordered named columns over row-major cells, plus parsing from delimited
// text, relational inner join, and CSV serialization.
//
// A Table is never mutated after construction. Every operation that changes
// shape or content returns a new Table, so a result handed to a caller can
// be shared freely between goroutines.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is a single scalar value. A Cell with Valid == false is missing
// (the CSV field was empty or an NA marker).
type Cell struct {
	String string
	Valid  bool
}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{String: s, Valid: true}
}

// Null returns a missing cell.
func Null() Cell {
	return Cell{}
}

// Float returns a present cell holding v formatted the way the downstream
// spreadsheets expect: shortest round-trip form, with a trailing ".0" on
// integral values so the column reads as floating point.
func Float(v float64) Cell {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return Text(s)
}

// Table is an immutable ordered set of named columns.
type Table struct {
	columns []string
	rows    [][]Cell
}

// New builds a Table, copying columns and rows. Every row must have exactly
// one cell per column.
func New(columns []string, rows [][]Cell) (*Table, error) {
	cols := append([]string(nil), columns...)
	out := make([][]Cell, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(cols))
		}
		out[i] = append([]Cell(nil), row...)
	}
	return &Table{columns: cols, rows: out}, nil
}

// Empty returns a table with the given header and zero rows.
func Empty(columns []string) *Table {
	return &Table{columns: append([]string(nil), columns...), rows: [][]Cell{}}
}

// build wraps already-owned slices without copying.
func build(columns []string, rows [][]Cell) *Table {
	if rows == nil {
		rows = [][]Cell{}
	}
	return &Table{columns: columns, rows: rows}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.columns) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []Cell {
	return append([]Cell(nil), t.rows[i]...)
}

// Cell returns the cell at row i in the named column.
func (t *Table) Cell(i int, column string) (Cell, bool) {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return Cell{}, false
	}
	return t.rows[i][idx], true
}

// ColumnIndex returns the position of the first column with the given name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Cell, bool) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, true
}

// RenameColumns returns a table whose column names are fn(name). Names that
// collide after renaming are disambiguated the same way the parser handles
// duplicate headers.
func (t *Table) RenameColumns(fn func(string) string) *Table {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = fn(c)
	}
	return build(dedupeNames(cols), t.rows)
}

// Drop returns a table without the named columns. Names that are not
// present are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var keep []int
	for i, c := range t.columns {
		if !drop[c] {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.columns) {
		return t
	}

	cols := make([]string, len(keep))
	for j, i := range keep {
		cols[j] = t.columns[i]
	}
	rows := make([][]Cell, len(t.rows))
	for r, row := range t.rows {
		out := make([]Cell, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		rows[r] = out
	}
	return build(cols, rows)
}

// WithColumn returns a table with an extra trailing column whose cell for
// row i is fill(i).
func (t *Table) WithColumn(name string, fill func(i int) Cell) *Table {
	cols := append(t.Columns(), name)
	rows := make([][]Cell, len(t.rows))
	for i, row := range t.rows {
		out := make([]Cell, 0, len(row)+1)
		out = append(out, row...)
		rows[i] = append(out, fill(i))
	}
	return build(cols, rows)
}

// Records returns the table as string records (header first), with missing
// cells rendered as empty strings.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for i, c := range row {
			if c.Valid {
				rec[i] = c.String
			}
		}
		out = append(out, rec)
	}
	return out
}

// dedupeNames renames repeated names to name.1, name.2, ... and empty names
// to "Unnamed: <pos>".
func dedupeNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		cand := n
		for k := 1; used[cand]; k++ {
			cand = fmt.Sprintf("%s.%d", n, k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}
