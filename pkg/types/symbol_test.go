package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSymbol() Symbol {
	return Symbol{
		Module:     "math",
		Function:   "add",
		Arity:      2,
		FilePath:   "/src/math.erl",
		Line:       2,
		Completion: "add(${1:X}, ${2:Y})$3",
	}
}

func TestSymbol_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Symbol)
		want   error
	}{
		{"valid", func(s *Symbol) {}, nil},
		{"zero arity", func(s *Symbol) { s.Arity = 0 }, nil},
		{"empty module", func(s *Symbol) { s.Module = "" }, ErrEmptyModule},
		{"empty function", func(s *Symbol) { s.Function = "" }, ErrEmptyFunction},
		{"empty path", func(s *Symbol) { s.FilePath = "" }, ErrEmptyFilePath},
		{"zero line", func(s *Symbol) { s.Line = 0 }, ErrInvalidLine},
		{"empty completion", func(s *Symbol) { s.Completion = "" }, ErrEmptyCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSymbol()
			tt.modify(&s)
			err := s.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestClampArity(t *testing.T) {
	assert.Equal(t, uint8(0), ClampArity(-1))
	assert.Equal(t, uint8(0), ClampArity(0))
	assert.Equal(t, uint8(3), ClampArity(3))
	assert.Equal(t, uint8(255), ClampArity(255))
	assert.Equal(t, uint8(255), ClampArity(1000))
}

func TestExportKey(t *testing.T) {
	s := validSymbol()
	assert.Equal(t, ExportKey{Name: "add", Arity: 2}, s.Key())
	assert.Equal(t, "add/2", s.Key().String())
}

func TestParseResult_HasSymbols(t *testing.T) {
	assert.False(t, (&ParseResult{Module: "empty"}).HasSymbols())
	assert.True(t, (&ParseResult{Module: "math", Symbols: []Symbol{validSymbol()}}).HasSymbols())
}
