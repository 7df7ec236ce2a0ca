package types

import "fmt"

const (
	methodTag = "\tMethod"
	moduleTag = "\tModule"
)

// CompletionItem is one row of a module completion query.
type CompletionItem struct {
	Label      string `json:"label"`      // "<function>/<arity>\tMethod"
	Completion string `json:"completion"` // snippet template
}

// ModuleItem is one row of the module list query.
type ModuleItem struct {
	Label string `json:"label"` // "<module>\tModule"
	Value string `json:"value"`
}

// PositionItem locates one definition of a function.
type PositionItem struct {
	Label    string `json:"label"` // "<function>/<arity>"
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
}

// NewCompletionItem builds a completion row.
func NewCompletionItem(function string, arity uint8, completion string) CompletionItem {
	return CompletionItem{
		Label:      fmt.Sprintf("%s/%d%s", function, arity, methodTag),
		Completion: completion,
	}
}

// NewModuleItem builds a module row.
func NewModuleItem(module string) ModuleItem {
	return ModuleItem{
		Label: module + moduleTag,
		Value: module,
	}
}

// NewPositionItem builds a position row.
func NewPositionItem(function string, arity uint8, filePath string, line int) PositionItem {
	return PositionItem{
		Label:    fmt.Sprintf("%s/%d", function, arity),
		FilePath: filePath,
		Line:     line,
	}
}
