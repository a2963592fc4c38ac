package rbtree

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

var (
	// ErrIncompleteRead is returned when a read does not return the expected number of bytes.
	ErrIncompleteRead = errors.New("incomplete read")

	// ErrAllocatorFull is returned when the allocator cannot hand out another node.
	ErrAllocatorFull = errors.New("rbtree allocator is full")

	// ErrCorruptBlock is returned when a hibernated column cannot be decoded.
	ErrCorruptBlock = errors.New("corrupt hibernated block")
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// hibernatedColumns is the number of deinterleaved node columns: key, value, left, parent, right, color.
const hibernatedColumns = 6

// maxAllocatorNodes is the hard limit: node #0 is the absent node and [math.MaxUint32] is reserved.
const maxAllocatorNodes = negativeLimitNode - 1

// Allocator is the arena for nodes in a RBTree. Node handles are indexes into it.
type Allocator struct {
	storage []node
	gaps    map[uint32]bool

	// hibernatedData holds the compressed columns followed by the compressed gaps.
	hibernatedData [hibernatedColumns + 1][]byte

	// HibernationThreshold is the minimum storage size which Hibernate compresses.
	HibernationThreshold int

	// MaxNodes caps the number of live nodes. Zero means the uint32 handle limit.
	MaxNodes int

	hibernatedStorageLen int
	hibernatedGapsLen    int
}

// NewAllocator creates a new allocator for RBTree's nodes.
func NewAllocator() *Allocator {
	return &Allocator{
		storage: []node{},
		gaps:    map[uint32]bool{},
	}
}

// Size returns the currently allocated size, including node #0 and freed slots.
func (allocator *Allocator) Size() int {
	return len(allocator.storage)
}

// Used returns the number of nodes contained in the allocator.
func (allocator *Allocator) Used() int {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}

	return len(allocator.storage) - len(allocator.gaps)
}

// Hibernated reports whether the storage is currently compressed.
func (allocator *Allocator) Hibernated() bool {
	return allocator.storage == nil
}

// Clone copies an existing RBTree allocator.
func (allocator *Allocator) Clone() *Allocator {
	if allocator.storage == nil {
		panic("cannot clone a hibernated allocator")
	}

	newAllocator := &Allocator{
		HibernationThreshold: allocator.HibernationThreshold,
		MaxNodes:             allocator.MaxNodes,
		storage:              make([]node, len(allocator.storage), cap(allocator.storage)),
		gaps:                 map[uint32]bool{},
	}
	copy(newAllocator.storage, allocator.storage)
	maps.Copy(newAllocator.gaps, allocator.gaps)

	return newAllocator
}

// Hibernate compresses the allocated memory.
func (allocator *Allocator) Hibernate() {
	if allocator.hibernatedStorageLen > 0 {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return
	}

	allocator.hibernatedStorageLen = len(allocator.storage)
	if allocator.hibernatedStorageLen == 0 {
		allocator.storage = nil
		allocator.gaps = nil

		return
	}

	buffers := [hibernatedColumns][]uint32{}

	for idx := range buffers {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range allocator.storage {
		buffers[0][idx] = uint32(nd.item.Key) //nolint:gosec // bit-preserving int32 round trip.
		buffers[1][idx] = nd.item.Value
		buffers[2][idx] = nd.left
		buffers[3][idx] = nd.parent
		buffers[4][idx] = nd.right

		if nd.color == black {
			buffers[5][idx] = 1
		}
	}

	allocator.storage = nil

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx, buffer := range buffers {
		go func(bufIdx int, buf []uint32) {
			defer wg.Done()

			allocator.hibernatedData[bufIdx] = CompressUInt32Slice(buf)
		}(idx, buffer)
	}

	// Compress gaps. Sorted deltas compress far better than map order.
	go func() {
		defer wg.Done()

		if len(allocator.gaps) > 0 {
			allocator.hibernatedGapsLen = len(allocator.gaps)
			gapsBuffer := sortedGaps(allocator.gaps)
			DeltaEncodeUInt32Slice(gapsBuffer)
			allocator.hibernatedData[hibernatedColumns] = CompressUInt32Slice(gapsBuffer)
		}

		allocator.gaps = nil
	}()

	wg.Wait()
}

// Boot performs the opposite of Hibernate() - decompresses and restores the allocated memory.
// A corrupt block leaves the allocator hibernated and returns ErrCorruptBlock.
func (allocator *Allocator) Boot() error {
	if allocator.storage == nil && allocator.hibernatedStorageLen == 0 {
		allocator.storage = []node{}
		allocator.gaps = map[uint32]bool{}

		return nil
	}

	if allocator.hibernatedStorageLen == 0 {
		// Not hibernated.
		return nil
	}

	if allocator.hibernatedData[0] == nil {
		panic("cannot boot a serialized Allocator")
	}

	buffers := [hibernatedColumns + 1][]uint32{}
	decoded := [hibernatedColumns + 1]bool{}

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers))

	for idx := range buffers {
		go func(bufIdx int) {
			defer wg.Done()

			size := allocator.hibernatedStorageLen
			if bufIdx == hibernatedColumns {
				size = allocator.hibernatedGapsLen
			}

			buffers[bufIdx] = make([]uint32, size)
			decoded[bufIdx] = size == 0 || DecompressUInt32Slice(allocator.hibernatedData[bufIdx], buffers[bufIdx])
		}(idx)
	}

	wg.Wait()

	for idx, ok := range decoded {
		if !ok {
			return fmt.Errorf("%w: column %d", ErrCorruptBlock, idx)
		}
	}

	gaps := buffers[hibernatedColumns]
	DeltaDecodeUInt32Slice(gaps)

	allocator.gaps = make(map[uint32]bool, len(gaps))
	for _, key := range gaps {
		allocator.gaps[key] = true
	}

	capSize := (allocator.hibernatedStorageLen * growCapacityNumerator) / growCapacityDenominator
	allocator.storage = make([]node, allocator.hibernatedStorageLen, capSize)

	for idx := range allocator.storage {
		nd := &allocator.storage[idx]
		nd.item.Key = int32(buffers[0][idx]) //nolint:gosec // bit-preserving int32 round trip.
		nd.item.Value = buffers[1][idx]
		nd.left = buffers[2][idx]
		nd.parent = buffers[3][idx]
		nd.right = buffers[4][idx]
		nd.color = buffers[5][idx] > 0
	}

	allocator.hibernatedData = [hibernatedColumns + 1][]byte{}
	allocator.hibernatedStorageLen = 0
	allocator.hibernatedGapsLen = 0

	return nil
}

// Serialize writes the hibernated allocator on disk.
func (allocator *Allocator) Serialize(path string) error {
	if allocator.storage != nil {
		panic("serialization requires the hibernated state")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	defer file.Close()

	writer := bufio.NewWriter(file)

	err = allocator.writeBlocks(writer)
	if err != nil {
		return err
	}

	err = writer.Flush()
	if err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	return nil
}

// Deserialize reads a hibernated allocator from disk.
func (allocator *Allocator) Deserialize(path string) error {
	if allocator.storage != nil {
		panic("deserialization requires the hibernated state")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	defer file.Close()

	return allocator.readBlocks(bufio.NewReader(file))
}

// writeBlocks writes the storage length, the gaps length and every compressed column.
// The compressed data is released once written.
func (allocator *Allocator) writeBlocks(writer io.Writer) error {
	err := writeUvarint(writer, safeconv.MustIntToUint64(allocator.hibernatedStorageLen))
	if err != nil {
		return fmt.Errorf("write storage len: %w", err)
	}

	err = writeUvarint(writer, safeconv.MustIntToUint64(allocator.hibernatedGapsLen))
	if err != nil {
		return fmt.Errorf("write gaps len: %w", err)
	}

	for idx, hse := range allocator.hibernatedData {
		err = writeUvarint(writer, uint64(len(hse)))
		if err != nil {
			return fmt.Errorf("write data len %d: %w", idx, err)
		}

		_, err = writer.Write(hse)
		if err != nil {
			return fmt.Errorf("write data %d: %w", idx, err)
		}

		allocator.hibernatedData[idx] = nil
	}

	return nil
}

func (allocator *Allocator) readBlocks(reader *bufio.Reader) error {
	storageLen, err := binary.ReadUvarint(reader)
	if err != nil {
		return fmt.Errorf("read storage len: %w", err)
	}

	gapsLen, err := binary.ReadUvarint(reader)
	if err != nil {
		return fmt.Errorf("read gaps len: %w", err)
	}

	if storageLen > uint64(maxAllocatorNodes) || gapsLen > storageLen {
		return fmt.Errorf("%w: storage %d, gaps %d", ErrIncompleteRead, storageLen, gapsLen)
	}

	allocator.hibernatedStorageLen = safeconv.MustUint64ToInt(storageLen)
	allocator.hibernatedGapsLen = safeconv.MustUint64ToInt(gapsLen)

	for idx := range allocator.hibernatedData {
		dataLen, readErr := binary.ReadUvarint(reader)
		if readErr != nil {
			return fmt.Errorf("read data len %d: %w", idx, readErr)
		}

		// LZ4 never inflates a block by more than a small constant factor.
		if dataLen > uint64(storageLen+1)*8+64 {
			return fmt.Errorf("%w %d: block of %d bytes", ErrIncompleteRead, idx, dataLen)
		}

		allocator.hibernatedData[idx] = make([]byte, safeconv.MustUint64ToInt(dataLen))

		bytesRead, readErr := io.ReadFull(reader, allocator.hibernatedData[idx])
		if readErr != nil {
			return fmt.Errorf("%w %d: %d instead of %d: %w", ErrIncompleteRead, idx, bytesRead, dataLen, readErr)
		}
	}

	return nil
}

func sortedGaps(gaps map[uint32]bool) []uint32 {
	return slices.Sorted(maps.Keys(gaps))
}

func writeUvarint(writer io.Writer, value uint64) error {
	_, err := writer.Write(binary.AppendUvarint(nil, value))

	return err
}

// capacity returns the number of live nodes the allocator may hold.
func (allocator *Allocator) capacity() int {
	if allocator.MaxNodes > 0 && allocator.MaxNodes < maxAllocatorNodes-1 {
		return allocator.MaxNodes
	}

	return maxAllocatorNodes - 1
}

// malloc returns a zeroed node handle. The node is not linked anywhere yet.
func (allocator *Allocator) malloc() (uint32, error) {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}

	if len(allocator.gaps) > 0 {
		var key uint32

		for key = range allocator.gaps {
			break
		}

		delete(allocator.gaps, key)

		return key, nil
	}

	nodeLen := len(allocator.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		allocator.storage = append(allocator.storage, node{})
		nodeLen = 1
	}

	if nodeLen-1 >= allocator.capacity() {
		return 0, fmt.Errorf("%w: %d nodes", ErrAllocatorFull, nodeLen-1)
	}

	doAssert(nodeLen < negativeLimitNode)

	allocator.storage = append(allocator.storage, node{})

	return safeconv.MustIntToUint32(nodeLen), nil
}

func (allocator *Allocator) free(nodeIdx uint32) {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}

	if nodeIdx == 0 {
		panic("node #0 is special and cannot be deallocated")
	}

	_, exists := allocator.gaps[nodeIdx]
	doAssert(!exists)

	allocator.storage[nodeIdx] = node{}
	allocator.gaps[nodeIdx] = true
}
