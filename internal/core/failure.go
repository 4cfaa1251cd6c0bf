package core

import (
	"errors"
	"fmt"
)

// Kind classifies a structural pipeline failure.
type Kind int

const (
	KindParse Kind = iota + 1
	KindMissingKey
	KindMissingColumn
	KindInvalidOptions
)

// String returns the snake_case name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse_failure"
	case KindMissingKey:
		return "missing_key"
	case KindMissingColumn:
		return "missing_column"
	case KindInvalidOptions:
		return "invalid_options"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Failure of the same kind.
var (
	ErrParse          = errors.New("parse failure")
	ErrMissingKey     = errors.New("join key not found")
	ErrMissingColumn  = errors.New("missing required column")
	ErrInvalidOptions = errors.New("invalid options")
)

func (k Kind) sentinel() error {
	switch k {
	case KindParse:
		return ErrParse
	case KindMissingKey:
		return ErrMissingKey
	case KindMissingColumn:
		return ErrMissingColumn
	case KindInvalidOptions:
		return ErrInvalidOptions
	}
	return nil
}

// Failure aborts a procedure run. No table accompanies a Failure.
type Failure struct {
	Kind   Kind
	Input  string // input the failure was detected on, if any
	Column string // join key or required column, if any
	Err    error  // underlying cause
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindParse:
		return fmt.Sprintf("parse failure: %s: %v", f.Input, f.Err)
	case KindMissingKey:
		return fmt.Sprintf("join key not found: %q is not a column of the %s table", f.Column, f.Input)
	case KindMissingColumn:
		return fmt.Sprintf("missing required column %q after join", f.Column)
	case KindInvalidOptions:
		return fmt.Sprintf("invalid options: %v", f.Err)
	}
	return fmt.Sprintf("pipeline failure: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the sentinel for the failure's kind.
func (f *Failure) Is(target error) bool {
	return target != nil && target == f.Kind.sentinel()
}

func parseFailure(input string, err error) *Failure {
	return &Failure{Kind: KindParse, Input: input, Err: err}
}

func missingKeyFailure(input, key string, cause error) *Failure {
	return &Failure{Kind: KindMissingKey, Input: input, Column: key, Err: cause}
}

func missingColumnFailure(column string) *Failure {
	return &Failure{Kind: KindMissingColumn, Column: column, Err: ErrMissingColumn}
}

func invalidOptions(err error) *Failure {
	return &Failure{Kind: KindInvalidOptions, Err: err}
}

// FailureKind returns the kind of a *Failure in err's chain, or 0.
func FailureKind(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
