package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyModule     = errors.New("module name is required")
	ErrEmptyFunction   = errors.New("function name is required")
	ErrEmptyFilePath   = errors.New("file path is required")
	ErrInvalidLine     = errors.New("line number must be >= 1")
	ErrEmptyCompletion = errors.New("completion template is required")
)
