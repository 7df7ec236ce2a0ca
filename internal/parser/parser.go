package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/patterns"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

// Placeholder replaces every special parameter in a function head.
const Placeholder = "Param"

// Parser extracts exported function signatures from Erlang source files
type Parser struct {
	patterns *patterns.Set
}

// New creates a new Parser. A nil set selects the default Erlang patterns.
func New(set *patterns.Set) *Parser {
	if set == nil {
		set = patterns.Default()
	}
	return &Parser{patterns: set}
}

// ParseFile reads a source file and extracts its exported functions
func (p *Parser) ParseFile(filePath string) (*types.ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(filePath, content)
}

// Parse extracts exported functions from already loaded file content.
// filePath is recorded on every symbol and names the module.
func (p *Parser) Parse(filePath string, content []byte) (*types.ParseResult, error) {
	code, err := p.patterns.ReplaceAll(patterns.KindComment, decode(content), "\n")
	if err != nil {
		return nil, fmt.Errorf("failed to strip comments: %w", err)
	}

	exports, order, err := p.collectExports(code)
	if err != nil {
		return nil, err
	}

	result := &types.ParseResult{
		Module:  ModuleName(filePath),
		Symbols: make([]types.Symbol, 0, len(exports)),
	}

	for i, line := range strings.Split(code, "\n") {
		if len(exports) == 0 {
			break
		}

		groups, ok, err := p.patterns.FindGroups(patterns.KindFunLine, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !ok || len(groups) < 3 {
			continue
		}

		name := groups[1]
		params, err := p.formatParams(groups[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		key := types.ExportKey{Name: name, Arity: len(params)}
		if _, ok := exports[key]; !ok {
			continue
		}
		// First matching clause wins; later clauses of the same
		// function/arity are not reported again.
		delete(exports, key)

		result.Symbols = append(result.Symbols, types.Symbol{
			Module:     result.Module,
			Function:   name,
			Arity:      types.ClampArity(len(params)),
			FilePath:   filePath,
			Line:       i + 1,
			Completion: Completion(name, params),
		})
	}

	for _, key := range order {
		if _, ok := exports[key]; ok {
			result.Unmatched = append(result.Unmatched, key)
		}
	}

	return result, nil
}

// collectExports gathers name/arity entries from every export attribute.
// order preserves first appearance for reporting.
func (p *Parser) collectExports(code string) (map[types.ExportKey]struct{}, []types.ExportKey, error) {
	blocks, err := p.patterns.FindAll(patterns.KindExport, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan exports: %w", err)
	}

	exports := make(map[types.ExportKey]struct{})
	var order []types.ExportKey
	for _, block := range blocks {
		entries, err := p.patterns.FindAll(patterns.KindFunName, block)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan export list: %w", err)
		}
		for _, entry := range entries {
			key, ok := parseExportEntry(entry)
			if !ok {
				continue
			}
			if _, seen := exports[key]; !seen {
				exports[key] = struct{}{}
				order = append(order, key)
			}
		}
	}
	return exports, order, nil
}

// parseExportEntry splits "name/arity"
func parseExportEntry(entry string) (types.ExportKey, bool) {
	slash := strings.LastIndex(entry, "/")
	if slash < 0 {
		return types.ExportKey{}, false
	}
	arity, err := strconv.Atoi(strings.TrimSpace(entry[slash+1:]))
	if err != nil {
		return types.ExportKey{}, false
	}
	return types.ExportKey{
		Name:  strings.TrimSpace(entry[:slash]),
		Arity: arity,
	}, true
}

// formatParams normalizes raw head parameter text into display tokens.
// The split is flat: commas inside a compound term that the special
// parameter pattern did not collapse still separate parameters.
func (p *Parser) formatParams(raw string) ([]string, error) {
	text, err := p.patterns.ReplaceAll(patterns.KindSpecialParam, raw, Placeholder)
	if err != nil {
		return nil, err
	}
	text, err = p.patterns.ReplaceAll(patterns.KindAssign, text, "")
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	params := strings.Split(text, ",")
	for i := range params {
		params[i] = strings.TrimSpace(params[i])
	}
	return params, nil
}

// Completion renders the editor snippet for a call:
// name(${1:P1}, ..., ${n:Pn})$<n+1>
func Completion(name string, params []string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, param := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "${%d:%s}", i+1, param)
	}
	fmt.Fprintf(&b, ")$%d", len(params)+1)
	return b.String()
}

// ModuleName derives the module from a file path: basename without extension
func ModuleName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
