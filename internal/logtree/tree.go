// Package logtree holds the labeled tree produced by parsing an ICT log.
//
// A parent exclusively owns its children. The parent link is kept for
// navigation only; nothing outside the parent's children slice refers to a
// child, so dropping a subtree drops everything beneath it.
package logtree

import (
	"fmt"
	"io"
	"strings"
)

// RootName is the name given to the root node when the caller does not
// supply one.
const RootName = "root"

// Node is a single labeled node of a parsed log.
type Node struct {
	name     string
	payload  string
	closed   bool
	children []*Node
	parent   *Node
}

// New creates a detached root node.
func New(name string) *Node {
	if name == "" {
		name = RootName
	}
	return &Node{name: name}
}

// Name returns the sibling-unique name of the node.
func (n *Node) Name() string { return n.name }

// Payload returns the text accumulated at this node's nesting level.
// It is empty, never absent, when nothing accumulated before the close.
func (n *Node) Payload() string { return n.payload }

// Closed reports whether the node's payload has been finalized.
func (n *Node) Closed() bool { return n.closed }

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in document order.
// The returned slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Len returns the number of direct children.
func (n *Node) Len() int { return len(n.children) }

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// AddChild appends a new open child named name.
// Callers are responsible for sibling-unique names, see SiblingNamer.
func (n *Node) AddChild(name string) *Node {
	child := &Node{name: name, parent: n}
	n.children = append(n.children, child)
	return child
}

// Close finalizes the node's payload. A node can be closed exactly once.
func (n *Node) Close(payload string) error {
	if n.closed {
		return fmt.Errorf("node %q already closed", n.Path())
	}
	n.payload = payload
	n.closed = true
	return nil
}

// Child returns the direct child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.children {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Lookup follows a slash-separated path of child names starting below n.
func (n *Node) Lookup(path string) (*Node, bool) {
	cur := n
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next, ok := cur.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Path returns the slash-joined names from the root down to n.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Depth returns the number of ancestors of n.
func (n *Node) Depth() int {
	d := 0
	for cur := n.parent; cur != nil; cur = cur.parent {
		d++
	}
	return d
}

// Walk visits n and its descendants depth-first in document order.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}

// Equal reports whether two subtrees have identical names, payloads and
// child ordering.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.name != other.name || n.payload != other.payload || len(n.children) != len(other.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// SuspectNames returns paths of nodes whose names contain a brace.
// That happens when a node's '|' came after a nested '{' or '}', so the
// name absorbed part of the following segment.
func (n *Node) SuspectNames() []string {
	var out []string
	n.Walk(func(c *Node) bool {
		if strings.ContainsAny(c.name, "{}") {
			out = append(out, c.Path())
		}
		return true
	})
	return out
}

// Dump writes an indented rendering of the subtree, one node per line.
func (n *Node) Dump(w io.Writer) error {
	var err error
	n.Walk(func(c *Node) bool {
		if err != nil {
			return false
		}
		indent := strings.Repeat("  ", c.Depth()-n.Depth())
		if c.payload == "" {
			_, err = fmt.Fprintf(w, "%s%s\n", indent, c.name)
		} else {
			_, err = fmt.Fprintf(w, "%s%s: %s\n", indent, c.name, c.payload)
		}
		return true
	})
	return err
}

// SiblingNamer disambiguates repeated raw names among the children of a
// single parent. The first occurrence keeps the raw name, the k-th repeat
// gets "raw_k". Use one SiblingNamer per parent.
type SiblingNamer map[string]int

// Next returns the unique name for the next child called raw.
func (s SiblingNamer) Next(raw string) string {
	count := s[raw]
	s[raw] = count + 1
	if count == 0 {
		return raw
	}
	return fmt.Sprintf("%s_%d", raw, count)
}
