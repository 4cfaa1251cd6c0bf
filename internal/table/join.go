package table

import (
	"errors"
	"fmt"
)

// ErrColumnNotFound is returned when an operation names a column the table
// does not have.
var ErrColumnNotFound = errors.New("column not found")

// Suffixes appended to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// InnerJoin joins left and right on equal values of the key column.
//
// Every pair of matching rows produces one output row, so duplicated keys on
// both sides yield their full cross product. Output rows follow left row
// order, and for each left row the matching right rows in right order.
// Missing key cells never match.
//
// Output columns are all left columns followed by the right columns except
// the key. A non-key column name present on both sides gets LeftSuffix on
// the left and RightSuffix on the right.
func InnerJoin(left, right *Table, key string) (*Table, error) {
	lk, ok := left.ColumnIndex(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in left table", ErrColumnNotFound, key)
	}
	rk, ok := right.ColumnIndex(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in right table", ErrColumnNotFound, key)
	}

	leftNames := make(map[string]bool, len(left.columns))
	for i, c := range left.columns {
		if i != lk {
			leftNames[c] = true
		}
	}
	rightNames := make(map[string]bool, len(right.columns))
	for i, c := range right.columns {
		if i != rk {
			rightNames[c] = true
		}
	}

	columns := make([]string, 0, len(left.columns)+len(right.columns)-1)
	for i, c := range left.columns {
		if i != lk && rightNames[c] {
			c += LeftSuffix
		}
		columns = append(columns, c)
	}
	rightCols := make([]int, 0, len(right.columns)-1)
	for i, c := range right.columns {
		if i == rk {
			continue
		}
		if leftNames[c] {
			c += RightSuffix
		}
		columns = append(columns, c)
		rightCols = append(rightCols, i)
	}

	index := make(map[string][]int)
	for i, row := range right.rows {
		if k := row[rk]; k.Valid {
			index[k.String] = append(index[k.String], i)
		}
	}

	var rows [][]Cell
	for _, lrow := range left.rows {
		k := lrow[lk]
		if !k.Valid {
			continue
		}
		for _, ri := range index[k.String] {
			rrow := right.rows[ri]
			out := make([]Cell, 0, len(columns))
			out = append(out, lrow...)
			for _, c := range rightCols {
				out = append(out, rrow[c])
			}
			rows = append(rows, out)
		}
	}

	return build(dedupeNames(columns), rows), nil
}
