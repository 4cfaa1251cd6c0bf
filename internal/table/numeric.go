package table

import (
	"regexp"
	"strconv"
	"strings"
)

// Pre-compiled so per-cell coercion stays cheap on large uploads.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses a cell as a decimal number. Surrounding whitespace is
// ignored. Missing cells, hex forms, NaN and Inf are not numbers.
func ParseNumber(c Cell) (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	s := strings.TrimSpace(c.String)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NumberOrZero coerces a cell to a number, substituting 0 for anything that
// does not parse.
func NumberOrZero(c Cell) float64 {
	v, _ := ParseNumber(c)
	return v
}

// CompareCells orders two cells: missing before present, numerically when
// both parse as numbers, otherwise by string value. Returns -1, 0 or 1.
func CompareCells(a, b Cell) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	}

	av, aok := ParseNumber(a)
	bv, bok := ParseNumber(b)
	if aok && bok {
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return strings.Compare(a.String, b.String)
	}
	if aok != bok {
		// numbers sort ahead of text
		if aok {
			return -1
		}
		return 1
	}
	return strings.Compare(a.String, b.String)
}
