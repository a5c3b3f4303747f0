// Package parser turns the brace/pipe delimited text of an ICT log into a
// logtree.
//
// Grammar:
//
//	segment := (plain_char | node)*
//	node    := '{' name '|' segment '}'
//	name    := every character up to the next '|'
//
// Plain characters accumulate into the payload of the enclosing node. '|'
// inside a payload is left untouched; splitting fields is the extractor's
// job.
package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mvp-joe/ict-watcher/internal/logtree"
)

const (
	// DefaultMaxDepth bounds brace nesting and therefore recursion depth.
	DefaultMaxDepth = 1024

	// DefaultMaxFileSize is the largest log ParseFile will load.
	DefaultMaxFileSize int64 = 64 << 20
)

// Parser builds trees from log text. A Parser holds only options, so one
// value can be shared by concurrent goroutines; every call gets its own
// build state.
type Parser struct {
	maxDepth    int
	maxFileSize int64
	rootName    string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth sets the deepest brace nesting accepted before the input is
// rejected as malformed.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithMaxFileSize sets the size limit applied by ParseFile.
func WithMaxFileSize(size int64) Option {
	return func(p *Parser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// WithRootName sets the name of roots created by Parse and ParseFile.
func WithRootName(name string) Option {
	return func(p *Parser) {
		p.rootName = name
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		maxDepth:    DefaultMaxDepth,
		maxFileSize: DefaultMaxFileSize,
		rootName:    logtree.RootName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses text with default options.
func Parse(text string) (*logtree.Node, error) {
	return New().Parse(text)
}

// ParseFile parses the file at path with default options.
func ParseFile(path string) (*logtree.Node, error) {
	return New().ParseFile(path)
}

// ParseFile loads the whole file into memory and parses it.
func (p *Parser) ParseFile(path string) (*logtree.Node, error) {
	text, err := p.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := p.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// Parse parses text into a new tree. On error no tree is returned.
func (p *Parser) Parse(text string) (*logtree.Node, error) {
	root := logtree.New(p.rootName)
	if err := p.ParseInto(text, root); err != nil {
		return nil, err
	}
	return root, nil
}

// ParseInto parses text into a caller-provided, empty root. On error the
// root is left partially built and must be discarded.
func (p *Parser) ParseInto(text string, root *logtree.Node) error {
	if root.Len() > 0 || root.Closed() {
		return fmt.Errorf("parse target %q is not an empty open node", root.Name())
	}
	text = strings.TrimPrefix(text, "\ufeff")

	b := &builder{size: len(text), maxDepth: p.maxDepth}
	_, err := b.build(text, root, 0)
	return err
}

// ReadFile loads a whole file, refusing files over the size limit.
func (p *Parser) ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.maxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if int64(len(data)) > p.maxFileSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, path, p.maxFileSize)
	}
	return string(data), nil
}

// builder is the per-call state of one parse.
type builder struct {
	size     int
	maxDepth int
}

// build consumes rest into node until node's closing '}' (or, for the root,
// the end of input) and returns the text left after it. Each frame owns its
// payload buffer and the sibling counter for node's children.
func (b *builder) build(rest string, node *logtree.Node, depth int) (string, error) {
	names := logtree.SiblingNamer{}
	var buf strings.Builder

	for len(rest) > 0 {
		i := strings.IndexAny(rest, "{}")
		if i < 0 {
			buf.WriteString(rest)
			rest = ""
			break
		}
		buf.WriteString(rest[:i])
		delim := rest[i]
		rest = rest[i+1:]

		switch delim {
		case '{':
			if depth+1 > b.maxDepth {
				return "", b.syntaxError(rest, node, fmt.Sprintf("nesting deeper than %d", b.maxDepth))
			}
			rawName, content, found := strings.Cut(rest, "|")
			if !found {
				return "", b.syntaxError(rest, node, "node name not terminated by '|' before end of input")
			}
			child := node.AddChild(names.Next(rawName))
			var err error
			rest, err = b.build(content, child, depth+1)
			if err != nil {
				return "", err
			}

		case '}':
			if depth == 0 {
				return "", b.syntaxError(rest, node, "unbalanced '}'")
			}
			if err := node.Close(strings.TrimSpace(buf.String())); err != nil {
				return "", err
			}
			return rest, nil
		}
	}

	if depth > 0 {
		return "", b.syntaxError(rest, node, "unexpected end of input, node not closed")
	}
	if err := node.Close(strings.TrimSpace(buf.String())); err != nil {
		return "", err
	}
	return "", nil
}

func (b *builder) syntaxError(rest string, node *logtree.Node, reason string) error {
	return &SyntaxError{
		Offset: b.size - len(rest),
		Node:   node.Path(),
		Reason: reason,
	}
}
