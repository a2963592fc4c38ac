// Package rbtree provides an arena-allocated red-black tree keyed by int32,
// with LZ4 hibernation of the arena, snapshots, and a sharded wrapper for
// concurrent callers.
package rbtree

// RBTree is a red-black tree with an API similar to C++ STL's multimap.
//
// Duplicate keys are accepted and placed to the right of equal keys.
// Node handles are indexes into an Allocator; parent handles are back-references
// that never own anything.
//
// RBTree is not safe for concurrent use. Callers serialize access themselves or
// use ShardedTree.
//
// Deletion of a node with children copies the item of its in-order successor
// (or predecessor) into it and physically removes the other node. Therefore an
// Iterator obtained before a Delete may afterwards point at a different item or at
// a freed slot: treat iterators as transient lookup results, never as durable handles.
type RBTree struct {
	// Nodes allocator.
	allocator *Allocator

	// Root of the tree.
	root uint32

	// The minimum and maximum nodes under the tree.
	minNode, maxNode uint32

	// Number of nodes under root, including the root.
	count int

	stats FixupStats
}

// NewRBTree creates a new red-black binary tree.
func NewRBTree(allocator *Allocator) *RBTree {
	return &RBTree{allocator: allocator}
}

func (tree *RBTree) storage() []node {
	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *RBTree) Allocator() *Allocator {
	return tree.allocator
}

// Len returns the number of elements in the tree.
func (tree *RBTree) Len() int {
	return tree.count
}

// Stats returns the fixup case counters accumulated since creation or the last ResetStats.
func (tree *RBTree) Stats() FixupStats {
	return tree.stats
}

// ResetStats zeroes the fixup case counters.
func (tree *RBTree) ResetStats() {
	tree.stats = FixupStats{}
}

// CloneShallow performs a shallow copy of the tree - the nodes are assumed to already exist in the allocator.
func (tree *RBTree) CloneShallow(allocator *Allocator) *RBTree {
	clone := *tree
	clone.allocator = allocator

	return &clone
}

// CloneDeep performs a deep copy of the tree - the nodes are created from scratch.
// It fails with ErrAllocatorFull if the target allocator cannot hold every node;
// the target allocator may then contain the nodes copied so far.
func (tree *RBTree) CloneDeep(allocator *Allocator) (*RBTree, error) {
	clone := &RBTree{
		count:     tree.count,
		allocator: allocator,
	}

	nodeMap := make(map[uint32]uint32, tree.count+1)
	nodeMap[0] = 0

	for iter := tree.Min(); !iter.Limit(); iter = iter.Next() {
		newNode, err := allocator.malloc()
		if err != nil {
			return nil, err
		}

		cloneNode := &allocator.storage[newNode]
		cloneNode.item = *iter.Item()
		cloneNode.color = tree.storage()[iter.node].color
		nodeMap[iter.node] = newNode
	}

	originStorage := tree.storage()
	cloneStorage := allocator.storage

	for origin, copied := range nodeMap {
		if origin == 0 {
			continue
		}

		cloneNode := &cloneStorage[copied]
		originNode := originStorage[origin]
		cloneNode.left = nodeMap[originNode.left]
		cloneNode.right = nodeMap[originNode.right]
		cloneNode.parent = nodeMap[originNode.parent]
	}

	clone.root = nodeMap[tree.root]
	clone.minNode = nodeMap[tree.minNode]
	clone.maxNode = nodeMap[tree.maxNode]

	return clone, nil
}

// Clear removes all the nodes from the tree and returns them to the allocator.
// The walk is iterative so that deep trees cannot exhaust the stack.
func (tree *RBTree) Clear() {
	alloc := tree.storage()
	nodeIdx := tree.root

	// Post-order teardown without a stack: descend to a leaf, free it, detach it
	// from its parent and continue from the parent.
	for nodeIdx != 0 {
		switch {
		case alloc[nodeIdx].left != 0:
			nodeIdx = alloc[nodeIdx].left
		case alloc[nodeIdx].right != 0:
			nodeIdx = alloc[nodeIdx].right
		default:
			parent := alloc[nodeIdx].parent
			if parent != 0 {
				if alloc[parent].left == nodeIdx {
					alloc[parent].left = 0
				} else {
					alloc[parent].right = 0
				}
			}

			tree.allocator.free(nodeIdx)
			nodeIdx = parent
		}
	}

	tree.root = 0
	tree.minNode = 0
	tree.maxNode = 0
	tree.count = 0
}

// Find returns an iterator to a node whose key equals key, found by ordered descent.
// With duplicates this is the first equal node on the search path, not necessarily
// the first one inserted. Returns Limit() when the key is absent.
func (tree *RBTree) Find(key int32) Iterator {
	return Iterator{tree, tree.find(key)}
}

// Get is a convenience function for finding an element equal to Key. Returns
// nil if not found.
func (tree *RBTree) Get(key int32) *uint32 {
	nodeIdx := tree.find(key)
	if nodeIdx == 0 {
		return nil
	}

	return &tree.storage()[nodeIdx].item.Value
}

// Contains reports whether at least one node holds key.
func (tree *RBTree) Contains(key int32) bool {
	return tree.find(key) != 0
}

// Min creates an iterator that points to the minimum item in the tree.
// If the tree is empty, returns Limit().
func (tree *RBTree) Min() Iterator {
	return Iterator{tree, tree.minNode}
}

// Max creates an iterator that points at the maximum item in the tree.
//
// If the tree is empty, returns NegativeLimit().
func (tree *RBTree) Max() Iterator {
	if tree.maxNode == 0 {
		return Iterator{tree, negativeLimitNode}
	}

	return Iterator{tree, tree.maxNode}
}

// Root returns an iterator on the root node, or Limit() for an empty tree.
func (tree *RBTree) Root() Iterator {
	return Iterator{tree, tree.root}
}

// Minimum returns the leftmost descendant of the subtree rooted at iter's node.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (tree *RBTree) Minimum(iter Iterator) Iterator {
	doAssert(!iter.Limit() && !iter.NegativeLimit())

	return Iterator{tree, minimumNode(iter.node, tree.storage())}
}

// Maximum returns the rightmost descendant of the subtree rooted at iter's node.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (tree *RBTree) Maximum(iter Iterator) Iterator {
	doAssert(!iter.Limit() && !iter.NegativeLimit())

	return Iterator{tree, maximumNode(iter.node, tree.storage())}
}

// Limit creates an iterator that points beyond the maximum item in the tree.
func (tree *RBTree) Limit() Iterator {
	return Iterator{tree, 0}
}

// NegativeLimit creates an iterator that points before the minimum item in the tree.
func (tree *RBTree) NegativeLimit() Iterator {
	return Iterator{tree, negativeLimitNode}
}

// FindGE finds the leftmost element N such that N >= Key, and returns the
// iterator pointing to the element. If no such element is found,
// returns tree.Limit().
func (tree *RBTree) FindGE(key int32) Iterator {
	alloc := tree.storage()
	candidate := uint32(0)

	for nodeIdx := tree.root; nodeIdx != 0; {
		if alloc[nodeIdx].item.Key >= key {
			candidate = nodeIdx
			nodeIdx = alloc[nodeIdx].left
		} else {
			nodeIdx = alloc[nodeIdx].right
		}
	}

	return Iterator{tree, candidate}
}

// FindLE finds the rightmost element N such that N <= Key, and returns the
// iterator pointing to the element. If no such element is found,
// returns iter.NegativeLimit().
func (tree *RBTree) FindLE(key int32) Iterator {
	alloc := tree.storage()
	candidate := uint32(negativeLimitNode)

	for nodeIdx := tree.root; nodeIdx != 0; {
		if alloc[nodeIdx].item.Key <= key {
			candidate = nodeIdx
			nodeIdx = alloc[nodeIdx].right
		} else {
			nodeIdx = alloc[nodeIdx].left
		}
	}

	return Iterator{tree, candidate}
}

func (tree *RBTree) find(key int32) uint32 {
	alloc := tree.storage()
	nodeIdx := tree.root

	for nodeIdx != 0 {
		nodeKey := alloc[nodeIdx].item.Key

		switch {
		case key < nodeKey:
			nodeIdx = alloc[nodeIdx].left
		case key > nodeKey:
			nodeIdx = alloc[nodeIdx].right
		default:
			return nodeIdx
		}
	}

	return 0
}

// replaceNode moves newn (possibly absent) into the slot held by oldn.
func (tree *RBTree) replaceNode(oldn, newn uint32) {
	alloc := tree.storage()

	if alloc[oldn].parent == 0 {
		tree.root = newn
	} else {
		if oldn == alloc[alloc[oldn].parent].left {
			alloc[alloc[oldn].parent].left = newn
		} else {
			alloc[alloc[oldn].parent].right = newn
		}
	}

	if newn != 0 {
		alloc[newn].parent = alloc[oldn].parent
	}
}
