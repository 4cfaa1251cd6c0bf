package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/linemodel/internal/table"
)

// LayoutKey is the join column shared by layout and style-list exports.
const LayoutKey = "LINELAYOUT"

// DefaultEffFloor is the minimum efficiency a row needs to count.
const DefaultEffFloor = 35.0

// MissingPolicy decides what happens when a required column is absent
// after the raw-data join.
type MissingPolicy string

const (
	// MissingStrict fails the run naming the first absent column.
	MissingStrict MissingPolicy = "strict"
	// MissingFill adds the column with a placeholder (0 for numeric
	// columns, "N/A" otherwise) and records a diagnostic.
	MissingFill MissingPolicy = "fill"
)

// JoinOptions configures JoinLayout.
type JoinOptions struct {
	Encoding string
	Key      string `validate:"required"`
}

// DefaultJoinOptions returns the layout join configuration.
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{Encoding: table.DefaultEncoding, Key: LayoutKey}
}

func (o JoinOptions) normalized() (JoinOptions, error) {
	if o.Encoding == "" {
		o.Encoding = table.DefaultEncoding
	}
	if strings.TrimSpace(o.Key) == "" {
		o.Key = LayoutKey
	}
	if err := validateStruct(o); err != nil {
		return o, invalidOptions(err)
	}
	if _, err := table.LookupEncoding(o.Encoding); err != nil {
		return o, invalidOptions(err)
	}
	return o, nil
}

// AggregateOptions configures AggregateRawData. Column names are matched
// after normalization (trimmed, lower-case), and are normalized the same
// way here. Zero values, and a nil EffFloor, take the value of the preset
// named by JoinKey.
type AggregateOptions struct {
	Encoding      string
	JoinKey       string        `validate:"required,oneof=group style"`
	RankCeiling   int           `validate:"min=1"`
	EffFloor      *float64      `validate:"required,gte=0"`
	DropColumns   []string      `validate:"dive,required"`
	RankBy        []string      `validate:"min=1,dive,required"`
	MissingPolicy MissingPolicy `validate:"required,oneof=strict fill"`
}

// Preset names.
const (
	PresetGroup = "group"
	PresetStyle = "style"
)

var presets = map[string]AggregateOptions{
	PresetGroup: {
		Encoding:      table.DefaultEncoding,
		JoinKey:       "group",
		RankCeiling:   3,
		EffFloor:      Float64(DefaultEffFloor),
		DropColumns:   []string{"line", "style"},
		RankBy:        []string{"id", "group", "jobtitle"},
		MissingPolicy: MissingStrict,
	},
	PresetStyle: {
		Encoding:      "utf-8-sig",
		JoinKey:       "style",
		RankCeiling:   2,
		EffFloor:      Float64(DefaultEffFloor),
		DropColumns:   []string{"line", "group"},
		RankBy:        []string{"id", "style", "jobtitle"},
		MissingPolicy: MissingStrict,
	},
}

// Preset returns a copy of a named option preset.
func Preset(name string) (AggregateOptions, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return AggregateOptions{}, invalidOptions(fmt.Errorf("unknown preset %q (want %s or %s)", name, PresetGroup, PresetStyle))
	}
	return p.clone(), nil
}

// Float64 returns a pointer to v, for EffFloor.
func Float64(v float64) *float64 { return &v }

// Floor returns the efficiency floor, or DefaultEffFloor when unset.
func (o AggregateOptions) Floor() float64 {
	if o.EffFloor == nil {
		return DefaultEffFloor
	}
	return *o.EffFloor
}

// clone copies o so the result shares no slices or pointers with it.
func (o AggregateOptions) clone() AggregateOptions {
	o.DropColumns = cloneNames(o.DropColumns)
	o.RankBy = cloneNames(o.RankBy)
	if o.EffFloor != nil {
		o.EffFloor = Float64(*o.EffFloor)
	}
	return o
}

// DefaultAggregateOptions returns the group-keyed preset.
func DefaultAggregateOptions() AggregateOptions {
	p, _ := Preset(PresetGroup)
	return p
}

// cloneNames copies names, keeping nil and empty distinct: nil means "use
// the preset", empty means "none".
func cloneNames(names []string) []string {
	if names == nil {
		return nil
	}
	return append([]string{}, names...)
}

// normalized fills zero values from the preset matching JoinKey (the group
// preset when JoinKey is empty or unknown), normalizes column names and
// validates the result.
func (o AggregateOptions) normalized() (AggregateOptions, error) {
	o = o.clone()
	def := DefaultAggregateOptions()
	if p, err := Preset(o.JoinKey); err == nil {
		def = p
	}

	if o.Encoding == "" {
		o.Encoding = def.Encoding
	}
	if o.JoinKey == "" {
		o.JoinKey = def.JoinKey
	}
	if o.RankCeiling == 0 {
		o.RankCeiling = def.RankCeiling
	}
	if o.EffFloor == nil {
		o.EffFloor = def.EffFloor
	}
	if o.MissingPolicy == "" {
		o.MissingPolicy = def.MissingPolicy
	}
	if o.RankBy == nil {
		o.RankBy = def.RankBy
	}
	if o.DropColumns == nil {
		o.DropColumns = def.DropColumns
	}

	o.JoinKey = NormalizeColumnName(o.JoinKey)
	o.MissingPolicy = MissingPolicy(strings.ToLower(strings.TrimSpace(string(o.MissingPolicy))))
	o.DropColumns = normalizeNames(o.DropColumns)
	o.RankBy = normalizeNames(o.RankBy)

	if err := validateStruct(o); err != nil {
		return o, invalidOptions(err)
	}
	if _, err := table.LookupEncoding(o.Encoding); err != nil {
		return o, invalidOptions(err)
	}
	return o, nil
}

// Validate reports whether the options are usable, after applying defaults.
func (o AggregateOptions) Validate() error {
	_, err := o.normalized()
	return err
}

// NormalizeColumnName trims surrounding whitespace and lower-cases a name.
func NormalizeColumnName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeColumnName(n)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(aggregateStructLevel, AggregateOptions{})
	return v
}

// aggregateStructLevel enforces consistency between the join key and the
// column lists.
func aggregateStructLevel(sl validator.StructLevel) {
	o := sl.Current().Interface().(AggregateOptions)
	for _, c := range o.DropColumns {
		if c == o.JoinKey {
			sl.ReportError(o.DropColumns, "DropColumns", "DropColumns", "excludes_key", o.JoinKey)
		}
	}
	found := false
	for _, c := range o.RankBy {
		if c == o.JoinKey {
			found = true
		}
	}
	if !found {
		sl.ReportError(o.RankBy, "RankBy", "RankBy", "includes_key", o.JoinKey)
	}
}

// validateStruct runs struct-tag validation and flattens field errors into
// one readable error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", fe.Field(), fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "excludes_key":
		return fmt.Sprintf("%s must not contain the join key %q", fe.Field(), fe.Param())
	case "includes_key":
		return fmt.Sprintf("%s must contain the join key %q", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
