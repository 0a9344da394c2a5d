package index

import (
	"sort"
	"strings"
)

// Node is one element of the unified restore namespace. Directory nodes carry
// children, leaf nodes carry the full device-relative path and every root
// containing it in chronological order.
type Node struct {
	Name     string
	Children []*Node
	Path     string   // set on leaves only
	Roots    []string // set on leaves only
}

func (n *Node) IsLeaf() bool {
	return n.Path != ""
}

func (n *Node) child(name string) *Node {
	for _, candidate := range n.Children {
		if candidate.Name == name {
			return candidate
		}
	}
	return nil
}

// BuildTree assembles the full device-relative namespace across all session
// roots into a single hierarchy for browsing. Children are sorted by name;
// the shape is independent of insertion order.
func (idx *Index) BuildTree() *Node {
	tree := &Node{}

	paths := make([]string, 0, len(idx.rev))
	for rel := range idx.rev {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		segments := strings.Split(rel, "/")
		node := tree
		for depth, segment := range segments {
			next := node.child(segment)
			if next == nil {
				next = &Node{Name: segment}
				node.Children = append(node.Children, next)
			}
			if depth == len(segments)-1 {
				next.Path = rel
				next.Roots = idx.RootsContaining(rel)
			}
			node = next
		}
	}
	return tree
}

// Walk visits every node depth-first in display order, reporting nesting
// depth starting at zero for the children of the invisible root.
func (n *Node) Walk(visit func(node *Node, depth int)) {
	var descend func(node *Node, depth int)
	descend = func(node *Node, depth int) {
		for _, child := range node.Children {
			visit(child, depth)
			descend(child, depth+1)
		}
	}
	descend(n, 0)
}
