// Package types provides shared type definitions for the Erlang completion index.
//
// This package defines domain types used across multiple components,
// including extracted symbols, parse results, and the query result shapes
// consumed by the editor layer.
//
// # Core Types
//
// Symbol represents one exported Erlang function head extracted from a
// source file:
//
//	symbol := types.Symbol{
//	    Module:     "math",
//	    Function:   "add",
//	    Arity:      2,
//	    FilePath:   "/src/math.erl",
//	    Line:       2,
//	    Completion: "add(${1:X}, ${2:Y})$3",
//	}
//
// # Query Results
//
// The three query shapes carry a trailing type tag in their labels
// ("\tMethod", "\tModule") that editor front-ends parse, so their string
// forms are fixed:
//
//	types.NewCompletionItem("add", 2, "add(${1:X}, ${2:Y})$3")
//	// Label: "add/2\tMethod"
//
//	types.NewModuleItem("math")
//	// Label: "math\tModule", Value: "math"
//
//	types.NewPositionItem("add", 2, "/src/math.erl", 2)
//	// Label: "add/2"
//
// # Validation
//
// Symbols implement Validate to guard the store against malformed records:
//
//	if err := symbol.Validate(); err != nil {
//	    return err
//	}
package types
