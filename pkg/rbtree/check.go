package rbtree

import (
	"errors"
	"fmt"
)

// Invariant violations reported by Validate.
var (
	ErrRootNotBlack   = errors.New("rbtree root is not black")
	ErrRedViolation   = errors.New("rbtree red node has a red child")
	ErrBlackViolation = errors.New("rbtree black height differs between paths")
	ErrOrderViolation = errors.New("rbtree keys are out of order")
	ErrParentLink     = errors.New("rbtree parent link does not match child link")
	ErrCountMismatch  = errors.New("rbtree node count mismatch")
)

type checkFrame struct {
	node   uint32
	blacks int
	depth  int
}

// walkSummary is what a single iterative pass over the tree learns.
type walkSummary struct {
	nodes       int
	height      int
	blackHeight int
}

// Validate checks every red-black and bookkeeping invariant and returns the first
// violation found, wrapped around one of the Err* sentinels.
func (tree *RBTree) Validate() error {
	alloc := tree.storage()

	if tree.root != 0 {
		if alloc[tree.root].parent != 0 {
			return fmt.Errorf("%w: root %d has parent %d", ErrParentLink, alloc[tree.root].item.Key, alloc[tree.root].parent)
		}

		if alloc[tree.root].color != black {
			return fmt.Errorf("%w: root key %d", ErrRootNotBlack, alloc[tree.root].item.Key)
		}
	}

	summary, err := tree.walk(true)
	if err != nil {
		return err
	}

	if summary.nodes != tree.count {
		return fmt.Errorf("%w: reachable %d, counted %d", ErrCountMismatch, summary.nodes, tree.count)
	}

	if tree.minNode != minimumNode(tree.root, alloc) || tree.maxNode != maximumNode(tree.root, alloc) {
		return fmt.Errorf("%w: stale min/max cache", ErrCountMismatch)
	}

	return tree.checkOrder()
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (tree *RBTree) Height() int {
	summary, _ := tree.walk(false)

	return summary.height
}

// BlackHeight returns the number of black nodes below the root on any path to an
// absent child, the absent child counted as one. Zero for an empty tree.
func (tree *RBTree) BlackHeight() int {
	if tree.root == 0 {
		return 0
	}

	alloc := tree.storage()
	blacks := 1

	for nodeIdx := alloc[tree.root].left; nodeIdx != 0; nodeIdx = alloc[nodeIdx].left {
		if alloc[nodeIdx].color == black {
			blacks++
		}
	}

	return blacks
}

// walk visits every node depth-first with an explicit stack.
// With strict set it stops at the first structural or color violation.
func (tree *RBTree) walk(strict bool) (walkSummary, error) {
	alloc := tree.storage()
	summary := walkSummary{blackHeight: -1}

	if tree.root == 0 {
		summary.blackHeight = 0

		return summary, nil
	}

	rootBlacks := 0
	if alloc[tree.root].color == black {
		rootBlacks = 1
	}

	stack := []checkFrame{{node: tree.root, blacks: rootBlacks, depth: 1}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		summary.nodes++
		summary.height = max(summary.height, frame.depth)

		nd := alloc[frame.node]

		for _, child := range [2]uint32{nd.left, nd.right} {
			if child == 0 {
				if !strict {
					continue
				}

				// Absent children close a path.
				if summary.blackHeight < 0 {
					summary.blackHeight = frame.blacks
				} else if summary.blackHeight != frame.blacks {
					return summary, fmt.Errorf("%w: %d vs %d below key %d",
						ErrBlackViolation, summary.blackHeight, frame.blacks, nd.item.Key)
				}

				continue
			}

			if strict {
				err := checkEdge(frame.node, child, alloc)
				if err != nil {
					return summary, err
				}
			}

			blacks := frame.blacks
			if alloc[child].color == black {
				blacks++
			}

			stack = append(stack, checkFrame{node: child, blacks: blacks, depth: frame.depth + 1})
		}

		if strict && summary.nodes > tree.count {
			// A cycle or a shared subtree would loop forever.
			return summary, fmt.Errorf("%w: more than %d nodes reachable", ErrCountMismatch, tree.count)
		}
	}

	return summary, nil
}

func checkEdge(parent, child uint32, alloc []node) error {
	if alloc[child].parent != parent {
		return fmt.Errorf("%w: key %d points to %d instead of %d",
			ErrParentLink, alloc[child].item.Key, alloc[child].parent, parent)
	}

	if alloc[parent].color == red && alloc[child].color == red {
		return fmt.Errorf("%w: %d -> %d", ErrRedViolation, alloc[parent].item.Key, alloc[child].item.Key)
	}

	return nil
}

// checkOrder verifies that the in-order walk never decreases, which is the BST
// property when duplicates may sit on both sides of an equal key.
func (tree *RBTree) checkOrder() error {
	first := true

	var prev int32

	for key := range tree.Keys() {
		if !first && key < prev {
			return fmt.Errorf("%w: %d follows %d", ErrOrderViolation, key, prev)
		}

		first = false
		prev = key
	}

	return nil
}
