package rbtree

// childLink returns the address of the left or right link of nodeIdx.
func childLink(alloc []node, nodeIdx uint32, left bool) *uint32 {
	if left {
		return &alloc[nodeIdx].left
	}

	return &alloc[nodeIdx].right
}

// rotate lowers pivot onto the given side and lifts its child from the other side
// into the pivot's place:
//
//	rotate(x, true):                rotate(y, false):
//	    x               y                 y             x
//	   / \             / \               / \           / \
//	  a   y    =>     x   c             x   c   =>    a   y
//	     / \         / \               / \               / \
//	    b   c       a   b             a   b             b   c
//
// The pivot's slot in its parent is found by handle identity, never by key.
func (tree *RBTree) rotate(pivot uint32, left bool) {
	alloc := tree.storage()

	riser := *childLink(alloc, pivot, !left)
	doAssert(riser != 0)

	inner := *childLink(alloc, riser, left)
	*childLink(alloc, pivot, !left) = inner

	if inner != 0 {
		alloc[inner].parent = pivot
	}

	above := alloc[pivot].parent
	alloc[riser].parent = above

	switch {
	case above == 0:
		tree.root = riser
	case alloc[above].left == pivot:
		alloc[above].left = riser
	default:
		alloc[above].right = riser
	}

	*childLink(alloc, riser, left) = pivot
	alloc[pivot].parent = riser
}

func (tree *RBTree) rotateLeft(nodeIdx uint32) {
	tree.rotate(nodeIdx, true)
}

func (tree *RBTree) rotateRight(nodeIdx uint32) {
	tree.rotate(nodeIdx, false)
}
