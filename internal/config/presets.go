package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PresetSpec is one raw-data preset as written in a YAML file. Base names a
// built-in preset (group or style) whose values fill unset fields.
//
//	presets:
//	  style-w22:
//	    base: style
//	    encoding: tis-620
//	    rank_ceiling: 3
type PresetSpec struct {
	Base          string   `yaml:"base,omitempty"`
	Encoding      string   `yaml:"encoding,omitempty"`
	JoinKey       string   `yaml:"join_key,omitempty"`
	RankCeiling   int      `yaml:"rank_ceiling,omitempty"`
	EffFloor      *float64 `yaml:"eff_floor,omitempty"`
	DropColumns   []string `yaml:"drop_columns"`
	RankBy        []string `yaml:"rank_by,omitempty"`
	MissingPolicy string   `yaml:"missing_policy,omitempty"`
}

type presetFile struct {
	Presets map[string]PresetSpec `yaml:"presets"`
}

// LoadPresets reads a YAML file of named presets.
func LoadPresets(path string) (map[string]PresetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes named presets. Names are lower-cased; unknown keys
// are rejected.
func ParsePresets(data []byte) (map[string]PresetSpec, error) {
	var f presetFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	out := make(map[string]PresetSpec, len(f.Presets))
	for name, spec := range f.Presets {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, errors.New("parse presets: empty preset name")
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("parse presets: duplicate preset %q", key)
		}
		out[key] = spec
	}
	return out, nil
}

// LoadPreset reads a single preset document, as passed to the CLI.
func LoadPreset(path string) (PresetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PresetSpec{}, fmt.Errorf("read preset: %w", err)
	}

	var spec PresetSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return PresetSpec{}, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return spec, nil
}

// MarshalPresets encodes named presets in the LoadPresets file layout.
func MarshalPresets(specs map[string]PresetSpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(presetFile{Presets: specs}); err != nil {
		return nil, fmt.Errorf("encode presets: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode presets: %w", err)
	}
	return buf.Bytes(), nil
}
