// Package document parses XML invoices into a navigable element tree.
package document

import (
	"regexp"
	"strconv"
	"strings"
)

// Node is one element of a parsed document.
// Name keeps the namespace prefix as written ("p:FatturaElettronica").
// Attributes are kept apart from child elements.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// Leaf reports whether the node has no child elements.
func (n *Node) Leaf() bool {
	return len(n.Children) == 0
}

// Attr returns an attribute value.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// ChildrenNamed returns the direct children with the given name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Value returns the scalar value of the node.
// A leaf yields its text. An element with children yields its own text if it
// has any, otherwise the text of its only child when that child is a leaf.
func (n *Node) Value() (string, bool) {
	if n.Leaf() {
		return n.Text, true
	}
	if n.Text != "" {
		return n.Text, true
	}
	if len(n.Children) == 1 && n.Children[0].Leaf() {
		return n.Children[0].Text, true
	}
	return "", false
}

// InnerText joins the text of the node and all its descendants with spaces.
func (n *Node) InnerText() string {
	var parts []string
	var walk func(*Node)
	walk = func(x *Node) {
		if x.Text != "" {
			parts = append(parts, x.Text)
		}
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

var indexedSegment = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// Lookup resolves a dot-separated path below n and returns every node the
// last segment matches. Each segment may carry one index ("Linea[2]").
// A segment without an index that matches several siblings continues from
// the first of them. A final "@name" segment selects an attribute, returned
// as a leaf node. An empty path resolves to n itself. The result is nil when
// any segment is missing.
func (n *Node) Lookup(path string) []*Node {
	if n == nil {
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return []*Node{n}
	}

	segments := strings.Split(path, ".")
	current := []*Node{n}
	for i, seg := range segments {
		if seg == "" {
			return nil
		}
		parent := current[0]

		if strings.HasPrefix(seg, "@") {
			if i != len(segments)-1 {
				return nil
			}
			v, ok := parent.Attr(seg[1:])
			if !ok {
				return nil
			}
			return []*Node{{Name: seg, Text: v}}
		}

		name, index, indexed := parseSegment(seg)
		matches := parent.ChildrenNamed(name)
		if indexed {
			if index >= len(matches) {
				return nil
			}
			matches = matches[index : index+1]
		}
		if len(matches) == 0 {
			return nil
		}
		current = matches
	}
	return current
}

// Find resolves a path and returns the first matching node.
func (n *Node) Find(path string) (*Node, bool) {
	nodes := n.Lookup(path)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

// ValueAt resolves a path and returns the scalar value of the first match.
func (n *Node) ValueAt(path string) (string, bool) {
	target, ok := n.Find(path)
	if !ok {
		return "", false
	}
	return target.Value()
}

func parseSegment(seg string) (string, int, bool) {
	m := indexedSegment.FindStringSubmatch(seg)
	if m == nil {
		return seg, 0, false
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return seg, 0, false
	}
	return m[1], idx, true
}
