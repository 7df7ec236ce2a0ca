package types

import (
	"fmt"
	"math"
)

// MaxArity is the largest arity a Symbol can carry. Larger parameter counts
// are clamped to it.
const MaxArity = math.MaxUint8

// Symbol is the unit of persistence: one exported function of one module.
type Symbol struct {
	// Identification
	Module   string // file basename without extension
	Function string
	Arity    uint8

	// Location
	FilePath string // path as produced by the scanner
	Line     int    // 1-based, counted on the comment-stripped text

	// Editor snippet, e.g. "add(${1:X}, ${2:Y})$3"
	Completion string
}

// ExportKey identifies an entry of a module's export list.
type ExportKey struct {
	Name  string
	Arity int
}

// String renders the key the way Erlang writes it, e.g. "add/2".
func (k ExportKey) String() string {
	return fmt.Sprintf("%s/%d", k.Name, k.Arity)
}

// ClampArity converts a parameter count to a Symbol arity.
func ClampArity(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > MaxArity {
		return MaxArity
	}
	return uint8(n)
}

// Key returns the symbol's export key.
func (s *Symbol) Key() ExportKey {
	return ExportKey{Name: s.Function, Arity: int(s.Arity)}
}

// Validate performs basic validation of the symbol
func (s *Symbol) Validate() error {
	if s.Module == "" {
		return ErrEmptyModule
	}
	if s.Function == "" {
		return ErrEmptyFunction
	}
	if s.FilePath == "" {
		return ErrEmptyFilePath
	}
	if s.Line <= 0 {
		return ErrInvalidLine
	}
	if s.Completion == "" {
		return ErrEmptyCompletion
	}
	return nil
}
