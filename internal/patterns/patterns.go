package patterns

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dlclark/regexp2"
)

// Kind names one entry of a pattern set
type Kind string

const (
	KindComment      Kind = "comment"
	KindExport       Kind = "export"
	KindFunName      Kind = "funname"
	KindFunLine      Kind = "funline"
	KindSpecialParam Kind = "special_param"
	KindAssign       Kind = "="
)

// AllKinds lists every pattern a complete set must provide
var AllKinds = []Kind{
	KindComment,
	KindExport,
	KindFunName,
	KindFunLine,
	KindSpecialParam,
	KindAssign,
}

// DefaultMatchTimeout bounds a single match so that a pathological pattern
// cannot stall a rebuild.
const DefaultMatchTimeout = 2 * time.Second

var (
	// ErrUnknownPattern is returned for an override whose name is not a Kind
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrInvalidPattern is returned when an expression fails to compile
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Erlang atoms: bare lowercase or single-quoted.
const atom = `(?:[a-z][\w@]*|'(?:[^'\\\n]|\\.)*')`

// DefaultSources are the Erlang patterns used when nothing overrides them.
var DefaultSources = map[Kind]string{
	// A comment runs to end of line; the newline is consumed so the
	// replacement newline keeps line numbering intact.
	KindComment: `%[^\n]*\n?`,

	KindExport: `-\s*export\s*\(\s*\[[^\]]*\]\s*\)`,

	KindFunName: atom + `\s*/\s*\d+`,

	// Group 1 is the function name, group 2 the raw parameter text.
	KindFunLine: `^(` + atom + `)\s*\((.*?)\)\s*(?:->|when\b)`,

	// Anything in a head that is not a plain variable name: records, maps,
	// tuples, lists, binaries, strings, quoted atoms, char literals,
	// underscore names, atoms and numbers.
	KindSpecialParam: `#(?:[a-z][\w@]*)?\{[^{}]*\}` +
		`|\{[^{}]*\}` +
		`|\[[^\[\]]*\]` +
		`|<<[^<>]*>>` +
		`|"(?:[^"\\]|\\.)*"` +
		`|'(?:[^'\\]|\\.)*'` +
		`|\$\\?.` +
		`|(?<![\w@])(?:_[\w@]*|[a-z][\w@]*|-?\d[\w#.]*)`,

	// "= Expr" up to the next comma.
	KindAssign: `\s*=[^,]*`,
}

// Set is a compiled pattern set
type Set struct {
	patterns map[Kind]*regexp2.Regexp
}

// Default returns the compiled default Erlang pattern set
func Default() *Set {
	s, err := Compile(nil, DefaultMatchTimeout)
	if err != nil {
		panic(fmt.Sprintf("patterns: default set does not compile: %v", err))
	}
	return s
}

// Compile builds a set from the defaults with the given overrides applied.
// A zero timeout disables the per-match timeout.
func Compile(overrides map[string]string, timeout time.Duration) (*Set, error) {
	sources := make(map[Kind]string, len(DefaultSources))
	for k, v := range DefaultSources {
		sources[k] = v
	}

	// Deterministic order keeps error messages stable
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind := Kind(name)
		if _, ok := sources[kind]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
		}
		sources[kind] = overrides[name]
	}

	s := &Set{patterns: make(map[Kind]*regexp2.Regexp, len(AllKinds))}
	for _, kind := range AllKinds {
		re, err := regexp2.Compile(sources[kind], regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, kind, err)
		}
		if timeout > 0 {
			re.MatchTimeout = timeout
		}
		s.patterns[kind] = re
	}
	return s, nil
}

// Source returns the expression behind a pattern
func (s *Set) Source(kind Kind) string {
	if re, ok := s.patterns[kind]; ok {
		return re.String()
	}
	return ""
}

// ReplaceAll replaces every match of the pattern in input with repl.
// repl is literal text unless it contains '$' substitutions.
func (s *Set) ReplaceAll(kind Kind, input, repl string) (string, error) {
	out, err := s.patterns[kind].Replace(input, repl, -1, -1)
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	return out, nil
}

// FindAll returns the text of every non-overlapping match in input
func (s *Set) FindAll(kind Kind, input string) ([]string, error) {
	re := s.patterns[kind]

	var found []string
	m, err := re.FindStringMatch(input)
	for m != nil && err == nil {
		found = append(found, m.String())
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return found, nil
}

// FindGroups returns the first match's capture groups, index 0 being the
// whole match. Groups that did not participate are empty strings.
func (s *Set) FindGroups(kind Kind, input string) ([]string, bool, error) {
	m, err := s.patterns[kind].FindStringMatch(input)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", kind, err)
	}
	if m == nil {
		return nil, false, nil
	}

	groups := m.Groups()
	out := make([]string, len(groups))
	for i := range groups {
		out[i] = groups[i].String()
	}
	return out, true, nil
}
