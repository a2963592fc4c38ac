package rbtree

// insertBalanced is returned by classifyInsert when no red-red violation remains.
const insertBalanced = numFixupCases

// Insert adds item to the tree and returns an iterator on the new node.
// Equal keys are accepted and go to the right of existing ones.
//
// The node is allocated before anything is linked, so ErrAllocatorFull leaves
// the tree untouched.
func (tree *RBTree) Insert(item Item) (Iterator, error) {
	nodeIdx, err := tree.allocator.malloc()
	if err != nil {
		return tree.Limit(), err
	}

	alloc := tree.storage()
	alloc[nodeIdx] = node{item: item, color: red}

	tree.link(nodeIdx)
	tree.insertFixup(nodeIdx)

	return Iterator{tree, nodeIdx}, nil
}

// link attaches a detached red node by ordered descent and updates the bookkeeping.
func (tree *RBTree) link(nodeIdx uint32) {
	alloc := tree.storage()
	key := alloc[nodeIdx].item.Key
	tree.count++

	if tree.root == 0 {
		tree.root = nodeIdx
		tree.minNode = nodeIdx
		tree.maxNode = nodeIdx

		return
	}

	parent := tree.root
	leftmost, rightmost := true, true

	for {
		if key < alloc[parent].item.Key {
			rightmost = false

			if alloc[parent].left == 0 {
				alloc[parent].left = nodeIdx

				break
			}

			parent = alloc[parent].left
		} else {
			leftmost = false

			if alloc[parent].right == 0 {
				alloc[parent].right = nodeIdx

				break
			}

			parent = alloc[parent].right
		}
	}

	alloc[nodeIdx].parent = parent

	if leftmost {
		tree.minNode = nodeIdx
	}

	if rightmost {
		tree.maxNode = nodeIdx
	}
}

// classifyInsert picks the rebalancing case for a cursor which may be red under a red parent.
func (tree *RBTree) classifyInsert(nodeIdx uint32) FixupCase {
	alloc := tree.storage()
	parent := alloc[nodeIdx].parent

	if parent == 0 {
		return InsertRoot
	}

	if isBlack(nodeIdx, alloc) || isBlack(parent, alloc) {
		return insertBalanced
	}

	// A red parent is never the root, so the grandparent exists.
	doAssert(alloc[parent].parent != 0)

	if !isBlack(uncle(nodeIdx, alloc), alloc) {
		return InsertRecolor
	}

	nodeLeft := isLeftChild(nodeIdx, alloc)
	parentLeft := isLeftChild(parent, alloc)

	switch {
	case nodeLeft && parentLeft:
		return InsertLeftLeft
	case !nodeLeft && parentLeft:
		return InsertLeftRight
	case !nodeLeft && !parentLeft:
		return InsertRightRight
	default:
		return InsertRightLeft
	}
}

// insertFixup restores the red-black invariants after linking the red node nodeIdx.
// Only InsertRecolor moves the cursor (two levels up); every rotation case ends the loop.
func (tree *RBTree) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for {
		fixup := tree.classifyInsert(nodeIdx)
		if fixup == insertBalanced {
			return
		}

		tree.stats.record(fixup)

		parent := alloc[nodeIdx].parent
		grandparent := alloc[parent].parent

		switch fixup {
		case InsertRoot:
			alloc[nodeIdx].color = black

			return
		case InsertRecolor:
			alloc[parent].color = black
			alloc[uncle(nodeIdx, alloc)].color = black
			alloc[grandparent].color = red
			nodeIdx = grandparent

			continue
		case InsertLeftLeft:
			tree.rotateRight(grandparent)
			alloc[parent].color = black
			alloc[grandparent].color = red
		case InsertLeftRight:
			tree.rotateLeft(parent)
			tree.rotateRight(grandparent)
			alloc[nodeIdx].color = black
			alloc[grandparent].color = red
		case InsertRightRight:
			tree.rotateLeft(grandparent)
			alloc[parent].color = black
			alloc[grandparent].color = red
		case InsertRightLeft:
			tree.rotateRight(parent)
			tree.rotateLeft(grandparent)
			alloc[nodeIdx].color = black
			alloc[grandparent].color = red
		default:
			panic("rbtree: unexpected insertion case " + fixup.String())
		}

		return
	}
}
