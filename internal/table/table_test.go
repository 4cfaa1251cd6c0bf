package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]Cell{{Text("1")}})
	assert.Error(t, err)
}

func TestNew_CopiesInput(t *testing.T) {
	cols := []string{"a"}
	rows := [][]Cell{{Text("1")}}
	tbl, err := New(cols, rows)
	require.NoError(t, err)

	cols[0] = "changed"
	rows[0][0] = Text("2")

	assert.Equal(t, []string{"a"}, tbl.Columns())
	assert.Equal(t, Text("1"), tbl.Row(0)[0])
}

func TestRenameColumns_Normalize(t *testing.T) {
	tbl := mustParse(t, " Line ,EFF,eff\n1,2,3\n")
	got := tbl.RenameColumns(func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
	assert.Equal(t, []string{"line", "eff", "eff.1"}, got.Columns())
	assert.Equal(t, []string{" Line ", "EFF", "eff"}, tbl.Columns(), "source table unchanged")
}

func TestDrop(t *testing.T) {
	tbl := mustParse(t, "a,b,c\n1,2,3\n")

	got := tbl.Drop("b", "missing")
	assert.Equal(t, [][]string{{"a", "c"}, {"1", "3"}}, got.Records())
	assert.Equal(t, 3, tbl.NumCols())
}

func TestWithColumn(t *testing.T) {
	tbl := mustParse(t, "a\n1\n2\n")
	got := tbl.WithColumn("b", func(i int) Cell { return Float(float64(i)) })
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "0.0"}, {"2", "1.0"}}, got.Records())
}

func TestFloat(t *testing.T) {
	assert.Equal(t, "65.0", Float(65).String)
	assert.Equal(t, "66.66666666666667", Float(200.0/3).String)
	assert.Equal(t, "-0.5", Float(-0.5).String)
}

func TestWriteCSV(t *testing.T) {
	tbl := mustParse(t, "a,b\n1,\n\"x,y\",2\n")
	out, err := MarshalCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\n\"x,y\",2\n", string(out))
}

func TestCompareCells(t *testing.T) {
	tests := []struct {
		a, b Cell
		want int
	}{
		{Text("2"), Text("10"), -1},
		{Text("10"), Text("2"), 1},
		{Text("b"), Text("a"), 1},
		{Text("1"), Text("a"), -1},
		{Null(), Text("a"), -1},
		{Text("1.0"), Text("1.0"), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareCells(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}
}

func TestNumberOrZero(t *testing.T) {
	assert.Equal(t, 40.0, NumberOrZero(Text(" 40 ")))
	assert.Equal(t, 0.5, NumberOrZero(Text(".5")))
	assert.Equal(t, 0.0, NumberOrZero(Text("abc")))
	assert.Equal(t, 0.0, NumberOrZero(Text("0x10")))
	assert.Equal(t, 0.0, NumberOrZero(Null()))
}
