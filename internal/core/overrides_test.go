package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/linemodel/internal/config"
)

func floatPtr(f float64) *float64 { return &f }

func TestPreset_ReturnsCopies(t *testing.T) {
	a, err := Preset(PresetGroup)
	require.NoError(t, err)
	a.RankBy[0] = "mutated"

	b, err := Preset("  GROUP ")
	require.NoError(t, err)
	assert.Equal(t, "id", b.RankBy[0])

	_, err = Preset("weekly")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestAggregateOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultAggregateOptions().Validate())

	style, err := Preset(PresetStyle)
	require.NoError(t, err)
	assert.NoError(t, style.Validate())

	bad := DefaultAggregateOptions()
	bad.RankBy = []string{"id", ""}
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RankBy")
}

func TestOverrides_Apply(t *testing.T) {
	base := DefaultAggregateOptions()

	got := Overrides{
		Encoding:      "utf-8",
		RankCeiling:   5,
		EffFloor:      floatPtr(0),
		MissingPolicy: "fill",
	}.Apply(base)

	assert.Equal(t, "utf-8", got.Encoding)
	assert.Equal(t, 5, got.RankCeiling)
	require.NotNil(t, got.EffFloor)
	assert.Equal(t, 0.0, *got.EffFloor)
	assert.Equal(t, DefaultEffFloor, *base.EffFloor, "base floor must not change")
	assert.Equal(t, MissingFill, got.MissingPolicy)
	assert.Equal(t, base.RankBy, got.RankBy)
	assert.Equal(t, 3, base.RankCeiling, "base must not change")
}

func TestOverrides_ApplySwapsJoinKey(t *testing.T) {
	got := Overrides{JoinKey: "Style"}.Apply(DefaultAggregateOptions())

	assert.Equal(t, "style", got.JoinKey)
	assert.Equal(t, []string{"id", "style", "jobtitle"}, got.RankBy)
	assert.Equal(t, []string{"line", "group"}, got.DropColumns)
	assert.NoError(t, got.Validate())
}

func TestOverrides_Merge(t *testing.T) {
	env := Overrides{Preset: "group", Encoding: "tis-620", RankCeiling: 4}
	req := Overrides{Preset: "style", EffFloor: floatPtr(50)}

	got := env.Merge(req)
	assert.Equal(t, "style", got.Preset)
	assert.Equal(t, "tis-620", got.Encoding)
	assert.Equal(t, 4, got.RankCeiling)
	require.NotNil(t, got.EffFloor)
	assert.Equal(t, 50.0, *got.EffFloor)
}

func TestPresetSet(t *testing.T) {
	ps, err := NewPresetSet(map[string]config.PresetSpec{
		"week22": {Base: "style", Encoding: "tis-620", RankCeiling: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"group", "style", "week22"}, ps.Names())

	opts, err := ps.Resolve(Overrides{Preset: "Week22"}, PresetGroup)
	require.NoError(t, err)
	assert.Equal(t, "style", opts.JoinKey)
	assert.Equal(t, "tis-620", opts.Encoding)
	assert.Equal(t, 3, opts.RankCeiling)

	opts, err = ps.Resolve(Overrides{}, PresetGroup)
	require.NoError(t, err)
	assert.Equal(t, "group", opts.JoinKey)

	_, err = ps.Resolve(Overrides{Preset: "nope"}, PresetGroup)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestPresetSet_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		specs map[string]config.PresetSpec
	}{
		{"shadows builtin", map[string]config.PresetSpec{"Group": {}}},
		{"unknown base", map[string]config.PresetSpec{"x": {Base: "weekly"}}},
		{"invalid result", map[string]config.PresetSpec{"x": {RankCeiling: -2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPresetSet(tt.specs)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestOverridesFromConfig(t *testing.T) {
	ov := OverridesFromConfig(config.PipelineConfig{
		Preset:   "style",
		EffFloor: floatPtr(20),
		RankBy:   []string{"id", "style"},
	})
	assert.Equal(t, "style", ov.Preset)
	assert.Equal(t, 20.0, *ov.EffFloor)
	assert.Equal(t, []string{"id", "style"}, ov.RankBy)
}

func TestFailure_Messages(t *testing.T) {
	tests := []struct {
		err  *Failure
		want string
	}{
		{missingKeyFailure(InputStyleList, "group", nil), `join key not found: "group" is not a column of the stylelist table`},
		{missingColumnFailure("eff"), `missing required column "eff" after join`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}

	assert.Equal(t, "missing_column", KindMissingColumn.String())
	assert.Equal(t, Kind(0), FailureKind(assert.AnError))
}

func TestAggregateOptions_Spec(t *testing.T) {
	style, err := Preset(PresetStyle)
	require.NoError(t, err)

	spec := style.Spec()
	assert.Empty(t, spec.Base)
	assert.Equal(t, "utf-8-sig", spec.Encoding)
	assert.Equal(t, 2, spec.RankCeiling)
	require.NotNil(t, spec.EffFloor)
	assert.Equal(t, DefaultEffFloor, *spec.EffFloor)

	back, err := OverridesFromSpec(spec).Apply(DefaultAggregateOptions()).normalized()
	require.NoError(t, err)
	assert.Equal(t, style, back)
}
