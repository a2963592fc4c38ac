package rbtree

import "iter"

// Iterator allows scanning tree elements in sort order.
//
// Insertion never invalidates iterators. Deletion invalidates every iterator
// on the removed key and may also change the item seen through iterators on
// its successor or predecessor, see RBTree.
type Iterator struct {
	tree *RBTree
	node uint32
}

// Equal checks for the underlying nodes equality.
func (iter Iterator) Equal(other Iterator) bool {
	return iter.node == other.node
}

// Limit checks if the iterator points beyond the max element in the tree.
func (iter Iterator) Limit() bool {
	return iter.node == 0
}

// Min checks if the iterator points to the minimum element in the tree.
func (iter Iterator) Min() bool {
	return iter.node == iter.tree.minNode
}

// Max checks if the iterator points to the maximum element in the tree.
func (iter Iterator) Max() bool {
	return iter.node == iter.tree.maxNode
}

// NegativeLimit checks if the iterator points before the minimum element in the tree.
func (iter Iterator) NegativeLimit() bool {
	return iter.node == negativeLimitNode
}

// Item returns the current element. Allows mutating the node
// (key to be changed with care!).
//
// The result is nil if iter.Limit() || iter.NegativeLimit().
func (iter Iterator) Item() *Item {
	if iter.Limit() || iter.NegativeLimit() {
		return nil
	}

	return &iter.tree.storage()[iter.node].item
}

// Red reports whether the current node is red.
//
// REQUIRES: !iter.Limit() && !iter.NegativeLimit().
func (iter Iterator) Red() bool {
	doAssert(!iter.Limit() && !iter.NegativeLimit())

	return iter.tree.storage()[iter.node].color == red
}

// Next creates a new iterator that points to the successor of the current element.
//
// REQUIRES: !iter.Limit().
func (iter Iterator) Next() Iterator {
	doAssert(!iter.Limit())

	if iter.NegativeLimit() {
		return Iterator{iter.tree, iter.tree.minNode}
	}

	return Iterator{iter.tree, doNext(iter.node, iter.tree.storage())}
}

// Prev creates a new iterator that points to the predecessor of the current
// node.
//
// REQUIRES: !iter.NegativeLimit().
func (iter Iterator) Prev() Iterator {
	doAssert(!iter.NegativeLimit())

	if !iter.Limit() {
		return Iterator{iter.tree, doPrev(iter.node, iter.tree.storage())}
	}

	if iter.tree.maxNode == 0 {
		return Iterator{iter.tree, negativeLimitNode}
	}

	return Iterator{iter.tree, iter.tree.maxNode}
}

// All returns an ascending sequence of (key, value) pairs. Each call to the
// returned function restarts from the minimum. The tree must not be modified
// while the sequence is being consumed.
func (tree *RBTree) All() iter.Seq2[int32, uint32] {
	return func(yield func(int32, uint32) bool) {
		for it := tree.Min(); !it.Limit(); it = it.Next() {
			item := it.Item()
			if !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Keys returns the ascending sequence of keys, duplicates included.
func (tree *RBTree) Keys() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for key := range tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Backward returns a descending sequence of (key, value) pairs.
func (tree *RBTree) Backward() iter.Seq2[int32, uint32] {
	return func(yield func(int32, uint32) bool) {
		for it := tree.Max(); !it.NegativeLimit(); it = it.Prev() {
			item := it.Item()
			if !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Ascend returns the ascending sequence of items with from <= key < to.
func (tree *RBTree) Ascend(from, to int32) iter.Seq2[int32, uint32] {
	return func(yield func(int32, uint32) bool) {
		for it := tree.FindGE(from); !it.Limit(); it = it.Next() {
			item := it.Item()
			if item.Key >= to || !yield(item.Key, item.Value) {
				return
			}
		}
	}
}
