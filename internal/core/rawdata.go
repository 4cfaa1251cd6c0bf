package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// RequiredColumns must all be present after the raw-data join, in the order
// they are checked.
var RequiredColumns = []string{"line", "linkeff", "linkop", "id", "shift", "style", "group", "jobtitle", "eff"}

// GroupColumns is the aggregation key, in output column order.
var GroupColumns = []string{"linkeff", "linkop", "id", "line", "shift", "style", "group", "jobtitle"}

// AvgEffColumn holds the per-group mean efficiency in the output.
const AvgEffColumn = "AvgEff"

// EffAdjustFactor scales eff before ranking.
const EffAdjustFactor = 1.05

// numericColumns are filled with 0 rather than "N/A" under MissingFill.
var numericColumns = map[string]bool{"eff": true, "linkeff": true}

const keySep = "\x1f"

// OutputColumns returns the header of an aggregation result.
func OutputColumns() []string {
	return append(append([]string(nil), GroupColumns...), AvgEffColumn)
}

// effRecord is one joined row after schema validation.
type effRecord struct {
	group    []table.Cell
	rankKey  string
	rankable bool
	eff      float64
	adjusted float64
	rank     int
}

// AggregateRawData joins raw efficiency rows with the style list, ranks rows
// per group by adjusted efficiency, keeps the top rows above the floor and
// returns the mean efficiency per output group.
//
// A run that leaves no qualifying rows returns an empty Result, not an error.
func AggregateRawData(rawdata, stylelist []byte, opts AggregateOptions) (*Result, error) {
	start := time.Now()

	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	raw, err := parseInput(InputRawData, rawdata, opts.Encoding)
	if err != nil {
		return nil, err
	}
	style, err := parseInput(InputStyleList, stylelist, opts.Encoding)
	if err != nil {
		return nil, err
	}

	var diag diagnostics

	raw = raw.RenameColumns(NormalizeColumnName)
	style = style.RenameColumns(NormalizeColumnName)
	diag.shape(InputRawData, raw)
	diag.columns(InputRawData, raw)
	diag.shape(InputStyleList, style)

	style = style.Drop(opts.DropColumns...)
	diag.columns(InputStyleList+" (after drop)", style)

	if !raw.HasColumn(opts.JoinKey) {
		return nil, missingKeyFailure(InputRawData, opts.JoinKey, table.ErrColumnNotFound)
	}
	if !style.HasColumn(opts.JoinKey) {
		return nil, missingKeyFailure(InputStyleList, opts.JoinKey, table.ErrColumnNotFound)
	}

	joined, err := table.InnerJoin(raw, style, opts.JoinKey)
	if err != nil {
		return nil, missingKeyFailure(InputStyleList, opts.JoinKey, err)
	}
	diag.addf("joined on %q: %d rows", opts.JoinKey, joined.NumRows())
	diag.columns("joined", joined)

	joined, err = requireColumns(joined, opts.MissingPolicy, &diag)
	if err != nil {
		return nil, err
	}
	for _, col := range opts.RankBy {
		if !joined.HasColumn(col) {
			return nil, missingColumnFailure(col)
		}
	}

	records := buildRecords(joined, opts.RankBy)
	assignRanks(records)

	kept := make([]*effRecord, 0, len(records))
	for _, r := range records {
		if r.rank > 0 && r.rank <= opts.RankCeiling && r.eff >= *opts.EffFloor {
			kept = append(kept, r)
		}
	}
	diag.addf("filtered (rank <= %d and eff >= %g): %d rows", opts.RankCeiling, *opts.EffFloor, len(kept))

	if len(kept) == 0 {
		diag.addf("no rows satisfy rank <= %d and eff >= %g; result is empty", opts.RankCeiling, *opts.EffFloor)
		return newResult(ProcedureRawData, table.Empty(OutputColumns()), diag, start), nil
	}

	out, err := averageByGroup(kept)
	if err != nil {
		return nil, err
	}
	diag.addf("aggregated groups: %d", out.NumRows())

	return newResult(ProcedureRawData, out, diag, start), nil
}

// requireColumns checks the joined table for every required column. Under
// MissingStrict the first absent column fails the run; under MissingFill it
// is added with a placeholder.
func requireColumns(t *table.Table, policy MissingPolicy, diag *diagnostics) (*table.Table, error) {
	for _, col := range RequiredColumns {
		if t.HasColumn(col) {
			continue
		}
		if policy != MissingFill {
			return nil, missingColumnFailure(col)
		}
		fill := "N/A"
		if numericColumns[col] {
			fill = "0"
		}
		t = t.WithColumn(col, func(int) table.Cell { return table.Text(fill) })
		diag.addf("column %q missing after join; filled with %q", col, fill)
	}
	return t, nil
}

// buildRecords converts validated rows into typed records. eff is coerced
// to a number, with anything unparsable counted as 0.
func buildRecords(t *table.Table, rankBy []string) []*effRecord {
	groupIdx := columnIndexes(t, GroupColumns)
	rankIdx := columnIndexes(t, rankBy)
	effIdx, _ := t.ColumnIndex("eff")

	records := make([]*effRecord, t.NumRows())
	for i := range records {
		row := t.Row(i)

		group := make([]table.Cell, len(groupIdx))
		for j, idx := range groupIdx {
			group[j] = row[idx]
		}

		rankable := true
		parts := make([]string, len(rankIdx))
		for j, idx := range rankIdx {
			if idx < 0 || !row[idx].Valid {
				rankable = false
				break
			}
			parts[j] = keyPart(row[idx])
		}

		eff := table.NumberOrZero(row[effIdx])
		records[i] = &effRecord{
			group:    group,
			rankKey:  strings.Join(parts, keySep),
			rankable: rankable,
			eff:      eff,
			adjusted: eff * EffAdjustFactor,
		}
	}
	return records
}

// assignRanks numbers records 1..n within each rank group by adjusted
// efficiency, highest first. Equal values keep input order, so ranks never
// tie. Records with a missing rank-key cell keep rank 0.
func assignRanks(records []*effRecord) {
	groups := make(map[string][]*effRecord)
	var order []string
	for _, r := range records {
		if !r.rankable {
			continue
		}
		if _, ok := groups[r.rankKey]; !ok {
			order = append(order, r.rankKey)
		}
		groups[r.rankKey] = append(groups[r.rankKey], r)
	}

	for _, key := range order {
		g := groups[key]
		sort.SliceStable(g, func(a, b int) bool {
			return g[a].adjusted > g[b].adjusted
		})
		for i, r := range g {
			r.rank = i + 1
		}
	}
}

type effGroup struct {
	key  []table.Cell
	effs stats.Float64Data
}

// averageByGroup returns one row per distinct GroupColumns tuple with the
// mean eff. Records with a missing key cell are left out. Rows are sorted by
// key tuple so output is stable for identical input.
func averageByGroup(records []*effRecord) (*table.Table, error) {
	index := make(map[string]*effGroup)
	var groups []*effGroup

	for _, r := range records {
		key, ok := groupKey(r.group)
		if !ok {
			continue
		}
		g, exists := index[key]
		if !exists {
			g = &effGroup{key: r.group}
			index[key] = g
			groups = append(groups, g)
		}
		g.effs = append(g.effs, r.eff)
	}

	sort.Slice(groups, func(a, b int) bool {
		return compareKeys(groups[a].key, groups[b].key) < 0
	})

	rows := make([][]table.Cell, len(groups))
	for i, g := range groups {
		mean, err := stats.Mean(g.effs)
		if err != nil {
			return nil, fmt.Errorf("average eff: %w", err)
		}
		row := make([]table.Cell, 0, len(g.key)+1)
		row = append(row, g.key...)
		rows[i] = append(row, table.Float(mean))
	}

	return table.New(OutputColumns(), rows)
}

func groupKey(cells []table.Cell) (string, bool) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if !c.Valid {
			return "", false
		}
		parts[i] = keyPart(c)
	}
	return strings.Join(parts, keySep), true
}

// keyPart is the grouping identity of a cell. Numeric cells compare by value,
// so "80", "80.0" and " 80" fall in one group.
func keyPart(c table.Cell) string {
	if v, ok := table.ParseNumber(c); ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return c.String
}

func compareKeys(a, b []table.Cell) int {
	for i := range a {
		if c := table.CompareCells(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func columnIndexes(t *table.Table, names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		idx, ok := t.ColumnIndex(n)
		if !ok {
			idx = -1
		}
		out[i] = idx
	}
	return out
}
