package jsontext

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every SyntaxError.
var ErrMalformed = errors.New("jsontext: malformed input")

// SyntaxError describes a parse failure at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("jsontext: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformed
}

// ParseResult is returned by every parse and build entry point. It is never
// nil; check HasErrors before using Tree.
type ParseResult struct {
	Tree   *Tree
	Errors []*SyntaxError
}

// HasErrors reports whether parsing failed.
func (r *ParseResult) HasErrors() bool {
	return r == nil || len(r.Errors) > 0
}

// Err returns the first error, or nil when parsing succeeded.
func (r *ParseResult) Err() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrMalformed)
	}
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

func success(tree *Tree) *ParseResult {
	return &ParseResult{Tree: tree}
}

func failure(offset int, format string, args ...any) *ParseResult {
	return &ParseResult{
		Errors: []*SyntaxError{{Offset: offset, Msg: fmt.Sprintf(format, args...)}},
	}
}
