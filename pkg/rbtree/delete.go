package rbtree

// Delete removes one node holding key. Returns false, leaving the tree
// untouched, when the key is absent.
func (tree *RBTree) Delete(key int32) bool {
	nodeIdx := tree.find(key)
	if nodeIdx == 0 {
		return false
	}

	tree.doDelete(nodeIdx)

	return true
}

// DeleteWithIterator deletes the current item.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (tree *RBTree) DeleteWithIterator(iter Iterator) {
	doAssert(!iter.Limit() && !iter.NegativeLimit())
	tree.doDelete(iter.node)
}

// replacer returns the in-order successor when nodeIdx has a right subtree,
// else the predecessor when it has a left subtree, else 0.
func replacer(nodeIdx uint32, alloc []node) uint32 {
	if alloc[nodeIdx].right != 0 {
		return minimumNode(alloc[nodeIdx].right, alloc)
	}

	return maximumNode(alloc[nodeIdx].left, alloc)
}

// Delete N from the tree.
func (tree *RBTree) doDelete(nodeIdx uint32) {
	alloc := tree.storage()

	// Promote the replacer's item and remove the replacer instead.
	if repl := replacer(nodeIdx, alloc); repl != 0 {
		alloc[nodeIdx].item = alloc[repl].item
		nodeIdx = repl
	}

	doAssert(alloc[nodeIdx].left == 0 || alloc[nodeIdx].right == 0)

	child := alloc[nodeIdx].right
	if child == 0 {
		child = alloc[nodeIdx].left
	}

	if !isBlack(nodeIdx, alloc) || !isBlack(child, alloc) {
		tree.stats.record(DeleteSimple)

		if child != 0 {
			alloc[child].color = black
		}
	} else {
		// A black node without a red child is a leaf, it stays linked
		// as the cursor's starting point until the fixup is done.
		doAssert(child == 0)
		tree.deleteFixup(nodeIdx)
	}

	tree.replaceNode(nodeIdx, child)
	tree.allocator.free(nodeIdx)
	tree.count--

	if tree.count == 0 {
		tree.minNode = 0
		tree.maxNode = 0

		return
	}

	if tree.minNode == nodeIdx {
		tree.minNode = minimumNode(tree.root, alloc)
	}

	if tree.maxNode == nodeIdx {
		tree.maxNode = maximumNode(tree.root, alloc)
	}
}

// classifyDelete picks the rebalancing case for a double-black cursor.
func (tree *RBTree) classifyDelete(nodeIdx uint32) FixupCase {
	alloc := tree.storage()
	parent := alloc[nodeIdx].parent

	if parent == 0 {
		return DeleteRoot
	}

	// The cursor's side is one black short, so the other side holds at least one black node.
	sib := sibling(nodeIdx, alloc)
	doAssert(sib != 0)

	if !isBlack(sib, alloc) {
		return DeleteRedSibling
	}

	near, far := nephews(nodeIdx, alloc)

	switch {
	case isBlack(near, alloc) && isBlack(far, alloc) && isBlack(parent, alloc):
		return DeletePushUp
	case isBlack(near, alloc) && isBlack(far, alloc):
		return DeleteAbsorb
	case isBlack(far, alloc):
		return DeleteNearNephew
	default:
		return DeleteFarNephew
	}
}

// deleteFixup restores the black height on the path through nodeIdx, which
// is about to lose one black node.
//
// DeletePushUp is the only case that moves the cursor (one level up). DeleteRedSibling
// and DeleteNearNephew keep the cursor but turn the next iteration into a terminating
// case, so the loop ends at the root at the latest.
func (tree *RBTree) deleteFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for {
		fixup := tree.classifyDelete(nodeIdx)
		tree.stats.record(fixup)

		parent := alloc[nodeIdx].parent
		sib := sibling(nodeIdx, alloc)
		leftSide := parent != 0 && isLeftChild(nodeIdx, alloc)

		switch fixup {
		case DeleteRoot:
			alloc[nodeIdx].color = black

			return
		case DeleteRedSibling:
			alloc[sib].color = black
			alloc[parent].color = red
			tree.rotate(parent, leftSide)
		case DeletePushUp:
			alloc[sib].color = red
			nodeIdx = parent
		case DeleteAbsorb:
			alloc[parent].color = black
			alloc[sib].color = red

			return
		case DeleteNearNephew:
			near, _ := nephews(nodeIdx, alloc)
			alloc[near].color = black
			alloc[sib].color = red
			tree.rotate(sib, !leftSide)
		case DeleteFarNephew:
			_, far := nephews(nodeIdx, alloc)
			alloc[sib].color = alloc[parent].color
			alloc[parent].color = black
			alloc[far].color = black
			tree.rotate(parent, leftSide)

			return
		default:
			panic("rbtree: unexpected deletion case " + fixup.String())
		}
	}
}
