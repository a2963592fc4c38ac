package bench

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"maps"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// ErrHeightBound is returned when a sampled tree is taller than 2*log2(n+1).
var ErrHeightBound = errors.New("tree height exceeds the red-black bound")

const (
	// missingDeleteOdds makes one delete in that many target a missing key.
	missingDeleteOdds = 8
	// drawAttemptsPerShard bounds rejection sampling of keys owned by a shard.
	drawAttemptsPerShard = 64
	cancelCheckInterval  = 1024
)

// worker owns one shard: its random stream, its oracle and its counters.
type worker struct {
	cfg     Config
	shard   int
	ops     int
	tree    *rbtree.ShardedTree
	rec     Recorder
	rng     *rand.Rand
	oracle  map[int32]int
	live    []int32
	samples []Sample
	prev    rbtree.FixupStats

	done      int
	inserts   int
	deletes   int
	misses    int
	full      int
	skipped   int
	checks    int
	maxHeight int
}

func newWorker(cfg Config, shard int, tree *rbtree.ShardedTree, rec Recorder) *worker {
	ops := cfg.Operations / cfg.Shards
	if shard < cfg.Operations%cfg.Shards {
		ops++
	}

	return &worker{
		cfg:    cfg,
		shard:  shard,
		ops:    ops,
		tree:   tree,
		rec:    rec,
		rng:    rand.New(rand.NewPCG(cfg.Seed, uint64(shard))), //nolint:gosec // reproducible workload, not crypto.
		oracle: make(map[int32]int),
	}
}

// shape is the part of a tree a lookup-only operation must leave untouched.
// layout and height are only filled in by a deep shape, which walks every node.
type shape struct {
	size        int
	blackHeight int
	height      int
	root        rbtree.Iterator
	first       rbtree.Iterator
	last        rbtree.Iterator
	stats       rbtree.FixupStats
	layout      uint64
}

func shapeOf(tree *rbtree.RBTree, deep bool) shape {
	sh := shape{
		size:        tree.Len(),
		blackHeight: tree.BlackHeight(),
		root:        tree.Root(),
		first:       tree.Min(),
		last:        tree.Max(),
		stats:       tree.Stats(),
	}

	if deep {
		// The dump lists every key with its color and parent key.
		digest := fnv.New64a()
		if tree.Dump(digest) == nil {
			sh.layout = digest.Sum64()
		}

		sh.height = tree.Height()
	}

	return sh
}

func (wrk *worker) run(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bench.shard",
		trace.WithAttributes(attribute.Int("bench.shard", wrk.shard), attribute.Int("bench.operations", wrk.ops)))
	defer span.End()

	for range wrk.ops {
		if wrk.done%cancelCheckInterval == 0 {
			err := ctx.Err()
			if err != nil {
				return fmt.Errorf("shard %d: %w", wrk.shard, err)
			}
		}

		err := wrk.step(ctx)
		if err != nil {
			return wrk.fail(ctx, err)
		}

		wrk.done++

		if wrk.cfg.CheckEvery > 0 && wrk.done%wrk.cfg.CheckEvery == 0 {
			err = wrk.check()
			if err != nil {
				return wrk.fail(ctx, err)
			}
		}

		if wrk.cfg.SampleEvery > 0 && wrk.done%wrk.cfg.SampleEvery == 0 {
			err = wrk.sample(ctx)
			if err != nil {
				return wrk.fail(ctx, err)
			}
		}
	}

	err := wrk.finish(ctx)
	if err != nil {
		return wrk.fail(ctx, err)
	}

	return nil
}

func (wrk *worker) fail(ctx context.Context, err error) error {
	wrk.rec.RecordViolation(ctx, violationKind(err))

	return fmt.Errorf("shard %d after %d operations: %w", wrk.shard, wrk.done, err)
}

func (wrk *worker) step(ctx context.Context) error {
	if wrk.rng.Float64() >= wrk.cfg.DeleteRatio {
		return wrk.insert(ctx)
	}

	if len(wrk.live) > 0 && wrk.rng.IntN(missingDeleteOdds) != 0 {
		return wrk.deleteExisting(ctx)
	}

	return wrk.deleteMissing(ctx)
}

func (wrk *worker) insert(ctx context.Context) error {
	key, ok := wrk.drawKey(func(int32) bool { return true })
	if !ok {
		wrk.skipped++

		return nil
	}

	var err error

	start := time.Now()

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		_, err = tree.Insert(rbtree.Item{Key: key, Value: uint32(wrk.done)}) //nolint:gosec // op index, wraps harmlessly.
	})

	elapsed := time.Since(start)

	if errors.Is(err, rbtree.ErrAllocatorFull) {
		wrk.full++
		wrk.rec.RecordOp(ctx, OpInsert, false, elapsed)

		return nil
	}

	if err != nil {
		return err
	}

	wrk.oracle[key]++
	wrk.live = append(wrk.live, key)
	wrk.inserts++
	wrk.rec.RecordOp(ctx, OpInsert, true, elapsed)

	return nil
}

func (wrk *worker) deleteExisting(ctx context.Context) error {
	pos := wrk.rng.IntN(len(wrk.live))
	key := wrk.live[pos]
	last := len(wrk.live) - 1
	wrk.live[pos] = wrk.live[last]
	wrk.live = wrk.live[:last]

	var found bool

	start := time.Now()

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		found = tree.Delete(key)
	})

	wrk.rec.RecordOp(ctx, OpDelete, found, time.Since(start))

	if !found {
		return fmt.Errorf("%w: key %d was not found", ErrOracleMismatch, key)
	}

	wrk.oracle[key]--
	if wrk.oracle[key] == 0 {
		delete(wrk.oracle, key)
	}

	wrk.deletes++

	return nil
}

func (wrk *worker) deleteMissing(ctx context.Context) error {
	key, ok := wrk.drawKey(func(key int32) bool { return wrk.oracle[key] == 0 })
	if !ok {
		wrk.skipped++

		return nil
	}

	var (
		found         bool
		before, after shape
	)

	start := time.Now()

	// Every CheckEvery-th miss compares the full layout as well.
	deep := wrk.cfg.CheckEvery > 0 && wrk.misses%wrk.cfg.CheckEvery == 0

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		before = shapeOf(tree, deep)
		found = tree.Delete(key)
		after = shapeOf(tree, deep)
	})

	wrk.rec.RecordOp(ctx, OpDelete, found, time.Since(start))

	if found || before != after {
		return fmt.Errorf("%w: key %d", ErrAbsentDelete, key)
	}

	wrk.misses++

	return nil
}

// drawKey picks a random key in [-KeySpace/2, KeySpace/2) owned by this worker's
// shard and accepted by keep.
func (wrk *worker) drawKey(keep func(int32) bool) (int32, bool) {
	half := int64(wrk.cfg.KeySpace / 2)

	for range drawAttemptsPerShard * wrk.cfg.Shards {
		key := int32(int64(wrk.rng.Uint64N(uint64(wrk.cfg.KeySpace))) - half) //nolint:gosec // key space is at most 1<<32.
		if (wrk.cfg.Shards == 1 || wrk.tree.ShardIndex(key) == wrk.shard) && keep(key) {
			return key, true
		}
	}

	return 0, false
}

func (wrk *worker) check() error {
	var err error

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		err = tree.Validate()
	})

	wrk.checks++

	return err
}

func (wrk *worker) sample(ctx context.Context) error {
	var (
		size, height int
		stats        rbtree.FixupStats
	)

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		size, height, stats = tree.Len(), tree.Height(), tree.Stats()
	})

	bound := HeightBound(size)
	wrk.samples = append(wrk.samples, Sample{Shard: wrk.shard, Ops: wrk.done, Size: size, Height: height, Bound: bound})
	wrk.maxHeight = max(wrk.maxHeight, height)

	wrk.rec.RecordShape(ctx, size, height)
	wrk.rec.RecordFixups(ctx, stats.Sub(wrk.prev))
	wrk.prev = stats

	if float64(height) > bound {
		return fmt.Errorf("%w: height %d with %d nodes", ErrHeightBound, height, size)
	}

	return nil
}

// finish validates the tree, records a last sample and compares the contents
// with the oracle.
func (wrk *worker) finish(ctx context.Context) error {
	err := wrk.check()
	if err != nil {
		return err
	}

	err = wrk.sample(ctx)
	if err != nil {
		return err
	}

	got := make(map[int32]int, len(wrk.oracle))

	wrk.tree.With(wrk.shard, func(tree *rbtree.RBTree) {
		for key := range tree.Keys() {
			got[key]++
		}
	})

	if !maps.Equal(got, wrk.oracle) {
		return fmt.Errorf("%w: %d distinct keys in the tree, %d expected", ErrOracleMismatch, len(got), len(wrk.oracle))
	}

	return nil
}
