package core

import (
	"time"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// JoinLayout inner-joins a layout export with a style-list export on the
// LINELAYOUT column. Column names are used exactly as parsed. Every column
// from both sides is kept; the key appears once.
func JoinLayout(layout, stylelist []byte, opts JoinOptions) (*Result, error) {
	start := time.Now()

	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	left, err := parseInput(InputLayout, layout, opts.Encoding)
	if err != nil {
		return nil, err
	}
	right, err := parseInput(InputStyleList, stylelist, opts.Encoding)
	if err != nil {
		return nil, err
	}

	var diag diagnostics
	diag.shape(InputLayout, left)
	diag.shape(InputStyleList, right)

	if !left.HasColumn(opts.Key) {
		return nil, missingKeyFailure(InputLayout, opts.Key, table.ErrColumnNotFound)
	}
	if !right.HasColumn(opts.Key) {
		return nil, missingKeyFailure(InputStyleList, opts.Key, table.ErrColumnNotFound)
	}

	joined, err := table.InnerJoin(left, right, opts.Key)
	if err != nil {
		return nil, missingKeyFailure(InputStyleList, opts.Key, err)
	}
	diag.addf("joined on %q: %d rows, %d columns", opts.Key, joined.NumRows(), joined.NumCols())

	return newResult(ProcedureLayout, joined, diag, start), nil
}
