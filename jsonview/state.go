package jsonview

// State is the expand/collapse shape of a tree, saved between renders.
type State struct {
	IsExpanded bool    `json:"isExpanded"`
	Children   []State `json:"children"`
}

// SaveState captures the expanded flag of every node.
func (t *Tree) SaveState() State {
	if t.Root == nil {
		return State{}
	}
	return saveNode(t.Root)
}

func saveNode(n *Node) State {
	s := State{IsExpanded: n.Expanded, Children: make([]State, len(n.Children))}
	for i, c := range n.Children {
		s.Children[i] = saveNode(c)
	}
	return s
}

// RestoreState applies s and renumbers. A node's flag is always restored;
// its children only when the saved child count matches.
func (t *Tree) RestoreState(s State) {
	if t.Root == nil {
		return
	}
	restoreNode(t.Root, s)
	t.number()
}

func restoreNode(n *Node, s State) {
	n.Expanded = s.IsExpanded
	if len(s.Children) != len(n.Children) {
		return
	}
	for i, c := range n.Children {
		restoreNode(c, s.Children[i])
	}
}
