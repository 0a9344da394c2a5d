package output

import (
	"strings"

	"github.com/disiqueira/gotree/v3"

	"github.com/seafork/devmirror/internal/index"
)

// RestoreTree renders the unified restore namespace for browsing. Leaves are
// annotated with every session root containing them, oldest first.
type RestoreTree struct {
	tree gotree.Tree
}

func NewRestoreTree(rootLabel string, namespace *index.Node) RestoreTree {
	visual := RestoreTree{tree: gotree.New(rootLabel)}
	parents := []gotree.Tree{visual.tree}
	namespace.Walk(func(node *index.Node, depth int) {
		label := node.Name
		if node.IsLeaf() {
			label += "  (" + strings.Join(node.Roots, ", ") + ")"
		}
		child := parents[depth].Add(label)
		parents = append(parents[:depth+1], child)
	})
	return visual
}

func (t RestoreTree) Render() string {
	return t.tree.Print()
}
