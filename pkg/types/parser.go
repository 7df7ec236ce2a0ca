package types

// ParseResult represents the output of extracting one source file
type ParseResult struct {
	Module  string
	Symbols []Symbol

	// Exported entries for which no matching function head was found.
	// Informational only; they never produce records.
	Unmatched []ExportKey
}

// HasSymbols returns true if at least one exported function was extracted
func (pr *ParseResult) HasSymbols() bool {
	return len(pr.Symbols) > 0
}
