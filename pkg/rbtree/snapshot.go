package rbtree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

var (
	// ErrBadSnapshot is returned when a snapshot stream is not a valid tree.
	ErrBadSnapshot = errors.New("bad rbtree snapshot")

	// ErrHibernated is returned when a snapshot is requested from a hibernated tree.
	ErrHibernated = errors.New("rbtree allocator is hibernated")
)

var snapshotMagic = []byte("RBT1")

// WriteSnapshot writes the tree header followed by the compressed arena.
// The tree stays usable: a clone of the arena is hibernated, not the live one.
// Every node of the allocator is written, including nodes of other trees sharing it.
// A hibernated tree must be booted first; otherwise ErrHibernated is returned.
func (tree *RBTree) WriteSnapshot(w io.Writer) error {
	if tree.allocator.Hibernated() {
		return ErrHibernated
	}

	frozen := tree.allocator.Clone()
	frozen.HibernationThreshold = 0
	frozen.Hibernate()

	writer := bufio.NewWriter(w)

	_, err := writer.Write(snapshotMagic)
	if err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	header := []uint64{uint64(tree.root), uint64(tree.minNode), uint64(tree.maxNode), safeconv.MustIntToUint64(tree.count)}

	for _, field := range header {
		err = writeUvarint(writer, field)
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	err = frozen.writeBlocks(writer)
	if err != nil {
		return err
	}

	err = writer.Flush()
	if err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot restores a tree written by WriteSnapshot into a fresh allocator
// and validates it before returning.
func ReadSnapshot(r io.Reader) (*RBTree, error) {
	reader := bufio.NewReader(r)

	magic := make([]byte, len(snapshotMagic))

	_, err := io.ReadFull(reader, magic)
	if err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrBadSnapshot, err)
	}

	if !bytes.Equal(magic, snapshotMagic) {
		return nil, fmt.Errorf("%w: magic %q", ErrBadSnapshot, magic)
	}

	var header [4]uint64

	for idx := range header {
		header[idx], err = binary.ReadUvarint(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: read header: %w", ErrBadSnapshot, err)
		}
	}

	allocator := &Allocator{}

	err = allocator.readBlocks(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	err = allocator.Boot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	size := uint64(allocator.Size())

	for _, handle := range header[:3] {
		if handle != 0 && handle >= size {
			return nil, fmt.Errorf("%w: handle %d outside arena of %d", ErrBadSnapshot, handle, size)
		}
	}

	if header[3] > size {
		return nil, fmt.Errorf("%w: count %d outside arena of %d", ErrBadSnapshot, header[3], size)
	}

	for idx, nd := range allocator.storage {
		if uint64(nd.left) >= size || uint64(nd.right) >= size || uint64(nd.parent) >= size {
			return nil, fmt.Errorf("%w: node %d links outside arena", ErrBadSnapshot, idx)
		}
	}

	tree := &RBTree{
		allocator: allocator,
		root:      safeconv.MustUint64ToUint32(header[0]),
		minNode:   safeconv.MustUint64ToUint32(header[1]),
		maxNode:   safeconv.MustUint64ToUint32(header[2]),
		count:     safeconv.MustUint64ToInt(header[3]),
	}

	err = tree.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	err = tree.checkGaps()
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// checkGaps rejects free slots that are not valid handles or are still linked
// into the tree. A later malloc would hand such a slot out twice.
func (tree *RBTree) checkGaps() error {
	alloc := tree.storage()
	size := safeconv.MustIntToUint32(len(alloc))

	for gap := range tree.allocator.gaps {
		if gap == 0 || gap >= size {
			return fmt.Errorf("%w: free slot %d outside arena of %d", ErrBadSnapshot, gap, size)
		}
	}

	for nodeIdx := tree.minNode; nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
		if tree.allocator.gaps[nodeIdx] {
			return fmt.Errorf("%w: node %d is linked and free", ErrBadSnapshot, nodeIdx)
		}
	}

	return nil
}
