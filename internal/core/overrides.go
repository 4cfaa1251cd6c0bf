package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/linemodel/internal/config"
)

// Overrides replaces selected fields of a preset. Zero values keep the
// preset's value; EffFloor is a pointer so an explicit 0 can be told apart
// from unset.
type Overrides struct {
	Preset        string
	Encoding      string
	JoinKey       string
	RankCeiling   int
	EffFloor      *float64
	DropColumns   []string
	RankBy        []string
	MissingPolicy string
}

// Apply returns base with every set override copied over it.
//
// Changing the join key without giving RankBy or DropColumns swaps the key
// inside the preset's lists, so switching a group preset to style ranks by
// style and drops group instead.
func (ov Overrides) Apply(base AggregateOptions) AggregateOptions {
	out := base.clone()

	if ov.Encoding != "" {
		out.Encoding = ov.Encoding
	}
	if key := NormalizeColumnName(ov.JoinKey); key != "" {
		old := NormalizeColumnName(base.JoinKey)
		if key != old {
			out.RankBy = swapName(out.RankBy, old, key)
			out.DropColumns = swapName(out.DropColumns, key, old)
		}
		out.JoinKey = key
	}
	if ov.RankCeiling != 0 {
		out.RankCeiling = ov.RankCeiling
	}
	if ov.EffFloor != nil {
		out.EffFloor = Float64(*ov.EffFloor)
	}
	if ov.DropColumns != nil {
		out.DropColumns = cloneNames(ov.DropColumns)
	}
	if len(ov.RankBy) > 0 {
		out.RankBy = cloneNames(ov.RankBy)
	}
	if ov.MissingPolicy != "" {
		out.MissingPolicy = MissingPolicy(ov.MissingPolicy)
	}
	return out
}

func swapName(names []string, from, to string) []string {
	for i, n := range names {
		if NormalizeColumnName(n) == from {
			names[i] = to
		}
	}
	return names
}

// Merge layers other on top of ov; fields set in other win.
func (ov Overrides) Merge(other Overrides) Overrides {
	if other.Preset != "" {
		ov.Preset = other.Preset
	}
	if other.Encoding != "" {
		ov.Encoding = other.Encoding
	}
	if other.JoinKey != "" {
		ov.JoinKey = other.JoinKey
	}
	if other.RankCeiling != 0 {
		ov.RankCeiling = other.RankCeiling
	}
	if other.EffFloor != nil {
		ov.EffFloor = other.EffFloor
	}
	if other.DropColumns != nil {
		ov.DropColumns = other.DropColumns
	}
	if len(other.RankBy) > 0 {
		ov.RankBy = other.RankBy
	}
	if other.MissingPolicy != "" {
		ov.MissingPolicy = other.MissingPolicy
	}
	return ov
}

// OverridesFromConfig converts the deployment-wide pipeline settings.
func OverridesFromConfig(p config.PipelineConfig) Overrides {
	return Overrides{
		Preset:        p.Preset,
		Encoding:      p.Encoding,
		JoinKey:       p.JoinKey,
		RankCeiling:   p.RankCeiling,
		EffFloor:      p.EffFloor,
		DropColumns:   p.DropColumns,
		RankBy:        p.RankBy,
		MissingPolicy: p.MissingPolicy,
	}
}

// OverridesFromSpec converts a preset read from YAML. Base becomes the
// built-in preset it extends.
func OverridesFromSpec(spec config.PresetSpec) Overrides {
	return Overrides{
		Preset:        spec.Base,
		Encoding:      spec.Encoding,
		JoinKey:       spec.JoinKey,
		RankCeiling:   spec.RankCeiling,
		EffFloor:      spec.EffFloor,
		DropColumns:   spec.DropColumns,
		RankBy:        spec.RankBy,
		MissingPolicy: spec.MissingPolicy,
	}
}

// Spec converts resolved options back to the YAML preset form.
func (o AggregateOptions) Spec() config.PresetSpec {
	return config.PresetSpec{
		Encoding:      o.Encoding,
		JoinKey:       o.JoinKey,
		RankCeiling:   o.RankCeiling,
		EffFloor:      Float64(o.Floor()),
		DropColumns:   append([]string{}, o.DropColumns...),
		RankBy:        append([]string(nil), o.RankBy...),
		MissingPolicy: string(o.MissingPolicy),
	}
}

// PresetSet holds the built-in presets plus any loaded from a file.
type PresetSet struct {
	presets map[string]AggregateOptions
}

// NewPresetSet returns the built-in presets extended by specs. A loaded
// preset may not shadow a built-in name, and its Base must be a built-in.
func NewPresetSet(specs map[string]config.PresetSpec) (*PresetSet, error) {
	ps := &PresetSet{presets: make(map[string]AggregateOptions, len(presets)+len(specs))}
	for name := range presets {
		p, _ := Preset(name)
		ps.presets[name] = p
	}

	for name, spec := range specs {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, builtin := presets[key]; builtin {
			return nil, invalidOptions(fmt.Errorf("preset %q shadows a built-in preset", key))
		}
		base := spec.Base
		if base == "" {
			base = PresetGroup
		}
		baseOpts, err := Preset(base)
		if err != nil {
			return nil, err
		}
		opts, err := OverridesFromSpec(spec).Apply(baseOpts).normalized()
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", key, err)
		}
		ps.presets[key] = opts
	}
	return ps, nil
}

// Get returns a copy of a named preset.
func (ps *PresetSet) Get(name string) (AggregateOptions, bool) {
	p, ok := ps.presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return AggregateOptions{}, false
	}
	return p.clone(), true
}

// Names returns every preset name.
func (ps *PresetSet) Names() []string {
	names := make([]string, 0, len(ps.presets))
	for n := range ps.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve picks ov.Preset (or fallback when unset), applies ov and
// validates the result.
func (ps *PresetSet) Resolve(ov Overrides, fallback string) (AggregateOptions, error) {
	name := ov.Preset
	if name == "" {
		name = fallback
	}
	base, ok := ps.Get(name)
	if !ok {
		return AggregateOptions{}, invalidOptions(fmt.Errorf("unknown preset %q (want one of %s)",
			name, strings.Join(ps.Names(), ", ")))
	}
	return ov.Apply(base).normalized()
}
