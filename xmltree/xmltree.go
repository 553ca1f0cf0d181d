package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sqlmapper/token"
)

// Kind distinguishes element nodes from character data.
type Kind int

const (
	ElementNode Kind = iota
	TextNode
)

// Attr is one attribute of an element, declaration order preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is one node of a parsed mapping document. Attribute and text accessors
// expand ${...} placeholders against the document's variable table.
type Node struct {
	kind     Kind
	name     string
	attrs    []Attr
	children []*Node
	parent   *Node
	text     string
	vars     map[string]string

	ident string // lazily computed value-based identifier
}

// Document is one parsed mapping document.
type Document struct {
	Root *Node
}

// Parse builds a Document from raw XML bytes. The variable table is attached
// to every node and consulted when attribute values and text are read.
func Parse(data []byte, variables map[string]string) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{kind: ElementNode, name: t.Name.Local, vars: variables}
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				stack[len(stack)-1].appendChild(n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			stack[len(stack)-1].appendChild(&Node{kind: TextNode, text: text, vars: variables})
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return &Document{Root: root}, nil
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the element name; empty for text nodes.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Attr returns the placeholder-expanded attribute value and whether the
// attribute is present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return token.Expand(a.Value, n.vars), true
		}
	}
	return "", false
}

// AttrDefault returns the attribute value or def when absent.
func (n *Node) AttrDefault(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// BoolAttr returns the attribute coerced to bool, or def when absent or not
// parseable.
func (n *Node) BoolAttr(name string, def bool) bool {
	v, ok := n.Attr(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// IntAttr returns the attribute coerced to int, or def when absent or not
// parseable.
func (n *Node) IntAttr(name string, def int) int {
	v, ok := n.Attr(name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Int64Attr returns the attribute coerced to int64, or def when absent or not
// parseable.
func (n *Node) Int64Attr(name string, def int64) int64 {
	v, ok := n.Attr(name)
	if !ok {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// SetAttr replaces or appends an attribute with a raw (unexpanded) value.
func (n *Node) SetAttr(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// Attrs returns the attributes in declaration order.
func (n *Node) Attrs() []Attr { return n.attrs }

// AttrsAsVariables returns all attributes as a string table, values expanded.
func (n *Node) AttrsAsVariables() map[string]string {
	out := make(map[string]string, len(n.attrs))
	for _, a := range n.attrs {
		out[a.Name] = token.Expand(a.Value, n.vars)
	}
	return out
}

// Children returns all child nodes, text nodes included, in document order.
func (n *Node) Children() []*Node { return n.children }

// ChildElements returns only the element children.
func (n *Node) ChildElements() []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.kind == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenNamed returns the element children with the given name.
func (n *Node) ChildrenNamed(names ...string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.kind != ElementNode {
			continue
		}
		for _, name := range names {
			if c.name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ChildNamed returns the first element child with the given name, or nil.
func (n *Node) ChildNamed(name string) *Node {
	for _, c := range n.children {
		if c.kind == ElementNode && c.name == name {
			return c
		}
	}
	return nil
}

// Text returns the content of a text node, placeholder-expanded.
func (n *Node) Text() string {
	return token.Expand(n.text, n.vars)
}

// RawText returns the content of a text node without expansion.
func (n *Node) RawText() string { return n.text }

// SetRawText replaces the content of a text node.
func (n *Node) SetRawText(text string) { n.text = text }

// Body returns the concatenated, placeholder-expanded text of all descendant
// text nodes in document order.
func (n *Node) Body() string {
	var sb strings.Builder
	n.writeBody(&sb)
	return sb.String()
}

func (n *Node) writeBody(sb *strings.Builder) {
	if n.kind == TextNode {
		sb.WriteString(n.Text())
		return
	}
	for _, c := range n.children {
		c.writeBody(sb)
	}
}

// ChildPropertiesAsVariables collects <property name value> children into a
// string table, values expanded.
func (n *Node) ChildPropertiesAsVariables() map[string]string {
	out := make(map[string]string)
	for _, c := range n.ChildrenNamed("property") {
		name, _ := c.Attr("name")
		value, _ := c.Attr("value")
		if name != "" {
			out[name] = value
		}
	}
	return out
}

// Clone returns a deep copy of the node subtree, detached from any parent.
func (n *Node) Clone() *Node {
	cp := &Node{kind: n.kind, name: n.name, text: n.text, vars: n.vars}
	cp.attrs = append([]Attr(nil), n.attrs...)
	for _, c := range n.children {
		cp.appendChild(c.Clone())
	}
	return cp
}

// RemoveChild detaches child from n. It is a no-op when child is not a direct
// child of n.
func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// ReplaceChild substitutes child with the given replacement nodes, preserving
// position. Replacements are detached from their previous parents.
func (n *Node) ReplaceChild(child *Node, replacements ...*Node) {
	for i, c := range n.children {
		if c != child {
			continue
		}
		// Detaching mutates the previous parent's child slice, which may be
		// the very slice the caller passed in, so copy first.
		moved := append([]*Node(nil), replacements...)
		for _, r := range moved {
			if r.parent != nil {
				r.parent.RemoveChild(r)
			}
			r.parent = n
		}
		rest := append([]*Node(nil), n.children[i+1:]...)
		n.children = append(n.children[:i], moved...)
		n.children = append(n.children, rest...)
		child.parent = nil
		return
	}
}

func (n *Node) appendChild(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// ValueBasedIdentifier returns a deterministic identifier for elements lacking
// an explicit id, derived from the node's path and its id/value/property
// attributes. Computed once and cached, so repeated resolution attempts see a
// stable value.
func (n *Node) ValueBasedIdentifier() string {
	if n.ident != "" {
		return n.ident
	}
	var segments []string
	for cur := n; cur != nil; cur = cur.parent {
		if cur.kind != ElementNode {
			continue
		}
		seg := cur.name
		v := cur.AttrDefault("id", cur.AttrDefault("value", cur.AttrDefault("property", "")))
		if v != "" {
			seg += "[" + strings.ReplaceAll(v, ".", "_") + "]"
		}
		segments = append([]string{seg}, segments...)
	}
	n.ident = strings.Join(segments, "_")
	return n.ident
}

// String renders the subtree for diagnostics.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n.kind == TextNode {
		sb.WriteString(n.text)
		return
	}
	sb.WriteString("<")
	sb.WriteString(n.name)
	for _, a := range n.attrs {
		fmt.Fprintf(sb, " %s=%q", a.Name, a.Value)
	}
	if len(n.children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	for _, c := range n.children {
		c.write(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.name)
	sb.WriteString(">")
}
