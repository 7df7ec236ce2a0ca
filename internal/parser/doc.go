// Package parser extracts exported function signatures from Erlang source files.
//
// Extraction is pattern driven rather than a full parse. For each file the
// parser:
//
//  1. Replaces every comment with a single newline, so lines outside
//     comments keep their numbers.
//  2. Collects name/arity entries from every -export([...]) attribute.
//  3. Walks the stripped text line by line, matching function heads.
//  4. Normalizes the head's parameters and counts them to get the arity.
//  5. Emits a symbol for the first clause whose name/arity is exported.
//
// # Basic Usage
//
//	p := parser.New(patterns.Default())
//	result, err := p.ParseFile("/src/math.erl")
//	if err != nil {
//	    return err
//	}
//
//	for _, sym := range result.Symbols {
//	    fmt.Printf("%s:%s/%d -> %s\n", sym.Module, sym.Function, sym.Arity, sym.Completion)
//	}
//
// # Parameters
//
// Records, maps, tuples, lists, binaries, literals, atoms and underscore
// names in a head are replaced with the placeholder "Param"; a trailing
// "= Expr" alias is dropped. The remaining text is split on commas without
// tracking bracket depth, so a compound term the patterns did not collapse
// (for example a nested tuple) is counted as several parameters.
//
// # Completion Templates
//
// Each parameter becomes a numbered snippet stop pre-filled with its text,
// followed by a final stop after the closing parenthesis:
//
//	add(X, Y) -> ...   =>   add(${1:X}, ${2:Y})$3
//	start() -> ...     =>   start()$1
//
// # Encoding
//
// Files declaring "coding: latin-1" in their first two lines are decoded
// as ISO-8859-1. Everything else is read as UTF-8 and invalid byte
// sequences are dropped instead of failing the file.
package parser
