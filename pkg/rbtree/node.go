package rbtree

import "math"

// Item is the object stored in each tree node. Value is an opaque payload
// which always travels together with its Key.
type Item struct {
	Key   int32
	Value uint32
}

const (
	red               = false
	black             = true
	negativeLimitNode = math.MaxUint32
)

type node struct {
	item                Item
	parent, left, right uint32
	color               bool // Black or red.
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

func colorName(color bool) string {
	if color == black {
		return "black"
	}

	return "red"
}

// Internal node attribute accessors.

// isBlack treats the absent node as black, which lets black-height counting
// handle leaves uniformly.
func isBlack(nodeIdx uint32, allocator []node) bool {
	return nodeIdx == 0 || allocator[nodeIdx].color == black
}

func isLeftChild(nodeIdx uint32, allocator []node) bool {
	return nodeIdx == allocator[allocator[nodeIdx].parent].left
}

func isRightChild(nodeIdx uint32, allocator []node) bool {
	return nodeIdx == allocator[allocator[nodeIdx].parent].right
}

func sibling(nodeIdx uint32, allocator []node) uint32 {
	parent := allocator[nodeIdx].parent
	if parent == 0 {
		return 0
	}

	if isLeftChild(nodeIdx, allocator) {
		return allocator[parent].right
	}

	return allocator[parent].left
}

func uncle(nodeIdx uint32, allocator []node) uint32 {
	parent := allocator[nodeIdx].parent
	if parent == 0 || allocator[parent].parent == 0 {
		return 0
	}

	return sibling(parent, allocator)
}

// nephews returns the sibling's children ordered relative to nodeIdx:
// near is on the same side as nodeIdx, far on the opposite side.
func nephews(nodeIdx uint32, allocator []node) (near, far uint32) {
	sib := sibling(nodeIdx, allocator)
	doAssert(sib != 0)

	if isLeftChild(nodeIdx, allocator) {
		return allocator[sib].left, allocator[sib].right
	}

	return allocator[sib].right, allocator[sib].left
}

func minimumNode(nodeIdx uint32, allocator []node) uint32 {
	if nodeIdx == 0 {
		return 0
	}

	for allocator[nodeIdx].left != 0 {
		nodeIdx = allocator[nodeIdx].left
	}

	return nodeIdx
}

func maximumNode(nodeIdx uint32, allocator []node) uint32 {
	if nodeIdx == 0 {
		return 0
	}

	for allocator[nodeIdx].right != 0 {
		nodeIdx = allocator[nodeIdx].right
	}

	return nodeIdx
}

// Return the minimum node that's larger than N. Return nil if no such
// node is found.
func doNext(nodeIdx uint32, allocator []node) uint32 {
	if allocator[nodeIdx].right != 0 {
		return minimumNode(allocator[nodeIdx].right, allocator)
	}

	for {
		parentIdx := allocator[nodeIdx].parent
		if parentIdx == 0 {
			return 0
		}

		if isLeftChild(nodeIdx, allocator) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// Return the maximum node that's smaller than N. Return negativeLimitNode if no
// such node is found.
func doPrev(nodeIdx uint32, allocator []node) uint32 {
	if allocator[nodeIdx].left != 0 {
		return maximumNode(allocator[nodeIdx].left, allocator)
	}

	for {
		parentIdx := allocator[nodeIdx].parent
		if parentIdx == 0 {
			return negativeLimitNode
		}

		if isRightChild(nodeIdx, allocator) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}
