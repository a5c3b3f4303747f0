package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedGrammar indicates unbalanced braces or end of input inside
	// an open node.
	ErrMalformedGrammar = errors.New("malformed log grammar")

	// ErrIO indicates the log file could not be read.
	ErrIO = errors.New("log file unreadable")

	// ErrFileTooLarge indicates the log file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("log file too large")
)

// SyntaxError describes where the input stopped being well formed.
// It matches ErrMalformedGrammar with errors.Is.
type SyntaxError struct {
	Offset int    // byte offset into the input
	Node   string // path of the node being built
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d in %s: %s", ErrMalformedGrammar, e.Offset, e.Node, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformedGrammar
}
