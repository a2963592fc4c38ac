package rbtree

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes one line per node in ascending order: key, color, and the parent's
// key, or "<-- root node" for the root.
func (tree *RBTree) Dump(w io.Writer) error {
	alloc := tree.storage()
	writer := bufio.NewWriter(w)

	for it := tree.Min(); !it.Limit(); it = it.Next() {
		nd := alloc[it.node]

		var err error
		if nd.parent == 0 {
			_, err = fmt.Fprintf(writer, "%d %s <-- root node\n", nd.item.Key, colorName(nd.color))
		} else {
			_, err = fmt.Fprintf(writer, "%d %s %d\n", nd.item.Key, colorName(nd.color), alloc[nd.parent].item.Key)
		}

		if err != nil {
			return fmt.Errorf("dump key %d: %w", nd.item.Key, err)
		}
	}

	err := writer.Flush()
	if err != nil {
		return fmt.Errorf("dump flush: %w", err)
	}

	return nil
}

// to control the print routine.
type branch int

const (
	branchRoot branch = iota
	branchLeft
	branchRight
)

type printFrame struct {
	node     uint32
	prefix   string
	branch   branch
	expanded bool
}

// Print writes a sideways ASCII picture of the tree, right subtree on top,
// and returns its height. Red nodes are marked with "*".
func (tree *RBTree) Print(w io.Writer) int {
	if tree.root == 0 {
		return 0
	}

	alloc := tree.storage()
	writer := bufio.NewWriter(w)

	defer writer.Flush()

	// Reverse in-order (right, node, left) with an explicit stack.
	stack := []printFrame{{node: tree.root, branch: branchRoot}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := alloc[frame.node]

		if frame.expanded {
			writeNodeLine(writer, frame, nd)

			continue
		}

		frame.expanded = true

		if nd.left != 0 {
			stack = append(stack, printFrame{node: nd.left, prefix: frame.prefix + childPad(frame.branch, branchRight), branch: branchLeft})
		}

		stack = append(stack, frame)

		if nd.right != 0 {
			stack = append(stack, printFrame{node: nd.right, prefix: frame.prefix + childPad(frame.branch, branchLeft), branch: branchRight})
		}
	}

	return tree.Height()
}

// childPad continues the vertical bar when the child lies on the opposite side of its parent.
func childPad(parent, barSide branch) string {
	if parent == barSide {
		return "|      "
	}

	return strings.Repeat(" ", len("|      "))
}

func writeNodeLine(writer io.Writer, frame printFrame, nd node) {
	var arm string

	switch frame.branch {
	case branchRoot:
		arm = "|------+ "
	case branchLeft:
		arm = "\\------+ "
	case branchRight:
		arm = "/------+ "
	}

	mark := ""
	if nd.color == red {
		mark = "*"
	}

	fmt.Fprintf(writer, "%s%s%d%s\n", frame.prefix, arm, nd.item.Key, mark)
}
