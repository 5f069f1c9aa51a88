// Package jsonview builds a collapsible tree from a JSON document, numbers
// its visible lines, renders it to markup and pretty prints it. Object key
// order and number literals are kept as written.
package jsonview

// Kind is the shape of a node.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "primitive"
}

// Node is one value of the document.
type Node struct {
	Kind  Kind
	Level int
	// Key is the member name when the parent is an object.
	Key string
	// Index is the position in the parent array, -1 otherwise.
	Index int
	// Value holds primitives: nil, bool, json.Number or string.
	Value    any
	Children []*Node
	Parent   *Node
	Expanded bool
	// Line is the 1-based line number among visible nodes, 0 when hidden.
	Line int
}

// HasKey reports whether the node is an object member.
func (n *Node) HasKey() bool { return n.Parent != nil && n.Parent.Kind == KindObject }

// IsLast reports whether the node is the last child of its parent. The root
// counts as last.
func (n *Node) IsLast() bool {
	if n.Parent == nil {
		return true
	}
	sib := n.Parent.Children
	return sib[len(sib)-1] == n
}

// Tree is a parsed document with its visible-line numbering.
type Tree struct {
	Root    *Node
	visible []*Node
}

// NewTree numbers the lines of root.
func NewTree(root *Node) *Tree {
	t := &Tree{Root: root}
	t.number()
	return t
}

// number assigns lines depth-first over visible nodes.
func (t *Tree) number() {
	t.visible = t.visible[:0]
	clearLines(t.Root)
	line := 1
	var walk func(n *Node)
	walk = func(n *Node) {
		n.Line = line
		line++
		t.visible = append(t.visible, n)
		if n.Expanded {
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

func clearLines(n *Node) {
	if n == nil {
		return
	}
	n.Line = 0
	for _, c := range n.Children {
		clearLines(c)
	}
}

// Visible returns the visible nodes in line order.
func (t *Tree) Visible() []*Node {
	return append([]*Node(nil), t.visible...)
}

// Node returns the visible node at line, or nil.
func (t *Tree) Node(line int) *Node {
	if line < 1 || line > len(t.visible) {
		return nil
	}
	return t.visible[line-1]
}

// Toggle flips the node at line and renumbers. It reports false when no
// visible node with children is at line.
func (t *Tree) Toggle(line int) bool {
	n := t.Node(line)
	if n == nil || len(n.Children) == 0 {
		return false
	}
	n.Expanded = !n.Expanded
	t.number()
	return true
}

// ExpandAll expands every node.
func (t *Tree) ExpandAll() { t.setAll(true) }

// CollapseAll collapses every node, leaving only the root visible.
func (t *Tree) CollapseAll() { t.setAll(false) }

func (t *Tree) setAll(expanded bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		n.Expanded = expanded
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	t.number()
}
