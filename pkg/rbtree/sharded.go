package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
)

// ErrSerializeShards is returned when shard serialization fails.
var ErrSerializeShards = errors.New("failed to serialize shards")

// ErrDeserializeShards is returned when shard deserialization fails.
var ErrDeserializeShards = errors.New("failed to deserialize shards")

// minHibernationThreshold is the minimal reasonable default if division results in 0.
const minHibernationThreshold = 1000

// shard is one independently locked tree with its own arena.
type shard struct {
	mu    sync.Mutex
	alloc *Allocator
	tree  *RBTree
}

// ShardedTree spreads keys over independent trees so that concurrent callers
// only contend when their keys hash to the same shard.
// All copies of a key land in the same shard.
type ShardedTree struct {
	shards []*shard
}

// NewShardedTree creates a ShardedTree with shardCount shards. The node cap and
// the hibernation threshold are split evenly between shards.
func NewShardedTree(shardCount, maxNodes, hibernationThreshold int) *ShardedTree {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*shard, shardCount)

	for idx := range shardCount {
		alloc := NewAllocator()

		if maxNodes > 0 {
			alloc.MaxNodes = max(maxNodes/shardCount, 1)
		}

		if hibernationThreshold > 0 {
			alloc.HibernationThreshold = hibernationThreshold / shardCount
			if alloc.HibernationThreshold == 0 {
				alloc.HibernationThreshold = minHibernationThreshold
			}
		}

		shards[idx] = &shard{alloc: alloc, tree: NewRBTree(alloc)}
	}

	return &ShardedTree{shards: shards}
}

// ShardIndex returns the shard that owns key.
func (st *ShardedTree) ShardIndex(key int32) int {
	var buf [4]byte

	binary.LittleEndian.PutUint32(buf[:], uint32(key)) //nolint:gosec // bit-preserving int32 round trip.

	hasher := fnv.New32a()
	hasher.Write(buf[:])

	return int(hasher.Sum32() % uint32(len(st.shards))) //nolint:gosec // the shard count fits in uint32.
}

// Shards returns the number of shards.
func (st *ShardedTree) Shards() int {
	return len(st.shards)
}

// With runs fn on the tree of shard idx while holding its lock.
func (st *ShardedTree) With(idx int, fn func(tree *RBTree)) {
	sh := st.shards[idx]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	fn(sh.tree)
}

// Insert adds item to the shard owning its key.
func (st *ShardedTree) Insert(item Item) error {
	var err error

	st.With(st.ShardIndex(item.Key), func(tree *RBTree) {
		_, err = tree.Insert(item)
	})

	return err
}

// Delete removes one copy of key and reports whether it was present.
func (st *ShardedTree) Delete(key int32) bool {
	var found bool

	st.With(st.ShardIndex(key), func(tree *RBTree) {
		found = tree.Delete(key)
	})

	return found
}

// Get returns the value of one node holding key.
func (st *ShardedTree) Get(key int32) (uint32, bool) {
	var (
		value uint32
		found bool
	)

	st.With(st.ShardIndex(key), func(tree *RBTree) {
		if ptr := tree.Get(key); ptr != nil {
			value, found = *ptr, true
		}
	})

	return value, found
}

// Len returns the total number of items over all shards.
func (st *ShardedTree) Len() int {
	total := 0

	for idx := range st.shards {
		st.With(idx, func(tree *RBTree) {
			total += tree.Len()
		})
	}

	return total
}

// Stats returns the fixup counters summed over all shards.
func (st *ShardedTree) Stats() FixupStats {
	var stats FixupStats

	for idx := range st.shards {
		st.With(idx, func(tree *RBTree) {
			stats.Add(tree.Stats())
		})
	}

	return stats
}

// Validate validates every shard and joins the failures.
func (st *ShardedTree) Validate() error {
	var errs []error

	for idx := range st.shards {
		st.With(idx, func(tree *RBTree) {
			err := tree.Validate()
			if err != nil {
				errs = append(errs, fmt.Errorf("shard %d: %w", idx, err))
			}
		})
	}

	return errors.Join(errs...)
}

// Hibernate hibernates all shards in parallel, regardless of their thresholds.
func (st *ShardedTree) Hibernate() {
	st.parallel(func(_ int, sh *shard) error {
		originalThreshold := sh.alloc.HibernationThreshold
		sh.alloc.HibernationThreshold = 0
		sh.alloc.Hibernate()
		sh.alloc.HibernationThreshold = originalThreshold

		return nil
	})
}

// Boot boots all shards in parallel.
func (st *ShardedTree) Boot() error {
	return st.parallel(func(idx int, sh *shard) error {
		err := sh.alloc.Boot()
		if err != nil {
			return fmt.Errorf("shard %d: %w", idx, err)
		}

		return nil
	})
}

// Serialize writes one snapshot file per shard, named basePath plus ".shard.N".
// Hibernated shards are booted for the write and hibernated again afterwards.
func (st *ShardedTree) Serialize(basePath string) error {
	err := st.parallel(func(idx int, sh *shard) error {
		if !sh.alloc.Hibernated() {
			return writeSnapshotFile(ShardPath(basePath, idx), sh.tree)
		}

		bootErr := sh.alloc.Boot()
		if bootErr != nil {
			return fmt.Errorf("shard %d: %w", idx, bootErr)
		}

		writeErr := writeSnapshotFile(ShardPath(basePath, idx), sh.tree)

		originalThreshold := sh.alloc.HibernationThreshold
		sh.alloc.HibernationThreshold = 0
		sh.alloc.Hibernate()
		sh.alloc.HibernationThreshold = originalThreshold

		return writeErr
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializeShards, err)
	}

	return nil
}

// Deserialize replaces every shard with the snapshot written by Serialize.
func (st *ShardedTree) Deserialize(basePath string) error {
	err := st.parallel(func(idx int, sh *shard) error {
		tree, readErr := readSnapshotFile(ShardPath(basePath, idx))
		if readErr != nil {
			return readErr
		}

		tree.allocator.MaxNodes = sh.alloc.MaxNodes
		tree.allocator.HibernationThreshold = sh.alloc.HibernationThreshold
		sh.alloc = tree.allocator
		sh.tree = tree

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeserializeShards, err)
	}

	return nil
}

// ShardPath returns the file name of shard idx under basePath.
func ShardPath(basePath string, idx int) string {
	return fmt.Sprintf("%s.shard.%d", basePath, idx)
}

// parallel runs fn on every shard in its own goroutine with the shard locked.
func (st *ShardedTree) parallel(fn func(idx int, sh *shard) error) error {
	var (
		errs []error
		mu   sync.Mutex
	)

	wg := sync.WaitGroup{}
	wg.Add(len(st.shards))

	for idx, sh := range st.shards {
		go func(shardIdx int, target *shard) {
			defer wg.Done()

			target.mu.Lock()
			err := fn(shardIdx, target)
			target.mu.Unlock()

			if err != nil {
				mu.Lock()

				errs = append(errs, err)

				mu.Unlock()
			}
		}(idx, sh)
	}

	wg.Wait()

	return errors.Join(errs...)
}

func writeSnapshotFile(path string, tree *RBTree) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	err = tree.WriteSnapshot(file)
	if err != nil {
		file.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

func readSnapshotFile(path string) (*RBTree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	defer file.Close()

	tree, err := ReadSnapshot(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return tree, nil
}
