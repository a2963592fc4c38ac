package bench //nolint:testpackage // tests cover the violation labels too.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

type countingRecorder struct {
	mu         sync.Mutex
	ops        map[string]int
	fixups     rbtree.FixupStats
	shapes     int
	violations []string
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: make(map[string]int)}
}

func (rec *countingRecorder) RecordOp(_ context.Context, op string, hit bool, _ time.Duration) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.ops[fmt.Sprintf("%s/%t", op, hit)]++
}

func (rec *countingRecorder) RecordFixups(_ context.Context, delta rbtree.FixupStats) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.fixups.Add(delta)
}

func (rec *countingRecorder) RecordShape(context.Context, int, int) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.shapes++
}

func (rec *countingRecorder) RecordViolation(_ context.Context, kind string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.violations = append(rec.violations, kind)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig() Config {
	return Config{
		Operations:  5000,
		KeySpace:    512,
		DeleteRatio: 0.45,
		Seed:        7,
		CheckEvery:  100,
		SampleEvery: 250,
	}
}

func TestRun_SingleShard(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()

	result, err := Run(context.Background(), smallConfig(), discardLogger(), rec)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.Failure)
	assert.Equal(t, 5000, result.Operations)
	assert.Equal(t, result.Inserts-result.Deletes, result.Final)
	assert.Positive(t, result.Misses)
	assert.Equal(t, 51, result.Checks)
	require.Len(t, result.Samples, 21)

	for _, sample := range result.Samples {
		assert.LessOrEqual(t, float64(sample.Height), sample.Bound)
		assert.LessOrEqual(t, sample.Height, result.MaxHeight)
	}

	last := result.Samples[len(result.Samples)-1]
	assert.Equal(t, result.Final, last.Size)

	// Every attempted operation reached the recorder.
	assert.Equal(t, result.Inserts, rec.ops["insert/true"])
	assert.Equal(t, result.Deletes, rec.ops["delete/true"])
	assert.Equal(t, result.Misses, rec.ops["delete/false"])
	assert.Equal(t, 21, rec.shapes)
	assert.Empty(t, rec.violations)

	// Fixup deltas add up to the tree totals.
	assert.Equal(t, result.Stats, rec.fixups)
	assert.Equal(t, result.Stats.Count(rbtree.DeleteFarNephew), result.Fixups["delete_far_nephew"])
	assert.Len(t, result.Fixups, len(rbtree.FixupCases()))
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := Run(context.Background(), smallConfig(), discardLogger(), nil)
	require.NoError(t, err)

	second, err := Run(context.Background(), smallConfig(), discardLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Inserts, second.Inserts)
	assert.Equal(t, first.Deletes, second.Deletes)
	assert.Equal(t, first.Final, second.Final)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, first.Samples, second.Samples)
}

func TestRun_Sharded(t *testing.T) {
	t.Parallel()

	cfg := smallConfig()
	cfg.Operations = 4002
	cfg.Shards = 4

	rec := newCountingRecorder()

	result, err := Run(context.Background(), cfg, discardLogger(), rec)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Equal(t, 4002, result.Operations)
	assert.Equal(t, result.Inserts-result.Deletes, result.Final)
	assert.Equal(t, result.Stats, rec.fixups)

	shards := make(map[int]bool)
	for _, sample := range result.Samples {
		shards[sample.Shard] = true
	}

	assert.Len(t, shards, 4)
}

func TestRun_MaxNodes(t *testing.T) {
	t.Parallel()

	cfg := Config{Operations: 200, KeySpace: 1 << 20, Seed: 1, MaxNodes: 16}

	result, err := Run(context.Background(), cfg, discardLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, 16, result.Final)
	assert.Equal(t, 16, result.Inserts)
	assert.Equal(t, 184, result.Full)
}

func TestRun_DeleteOnly(t *testing.T) {
	t.Parallel()

	cfg := Config{Operations: 300, KeySpace: 1 << 32, DeleteRatio: 1, Seed: 3}

	result, err := Run(context.Background(), cfg, discardLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, 300, result.Misses)
	assert.Zero(t, result.Final)
	assert.Zero(t, result.Stats.Total())
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	for name, cfg := range map[string]Config{
		"no ops":       {KeySpace: 10},
		"no keys":      {Operations: 10},
		"huge keys":    {Operations: 10, KeySpace: 1<<32 + 1},
		"bad ratio":    {Operations: 10, KeySpace: 10, DeleteRatio: 1.5},
		"negative cap": {Operations: 10, KeySpace: 10, MaxNodes: -1},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result, err := Run(context.Background(), cfg, discardLogger(), nil)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.False(t, result.Passed)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, smallConfig(), discardLogger(), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Failure)
	assert.Zero(t, result.Operations)
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, HeightBound(0), 1e-9)
	assert.InDelta(t, 2.0, HeightBound(1), 1e-9)
	assert.InDelta(t, 4.0, HeightBound(3), 1e-9)
	assert.InDelta(t, 20.0, HeightBound(1023), 1e-9)
}

func TestViolationKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "red_red", violationKind(fmt.Errorf("wrapped: %w", rbtree.ErrRedViolation)))
	assert.Equal(t, "oracle", violationKind(ErrOracleMismatch))
	assert.Equal(t, "height", violationKind(ErrHeightBound))
	assert.Equal(t, "other", violationKind(errors.New("boom")))
}

func TestShapeOf(t *testing.T) {
	t.Parallel()

	build := func(keys ...int32) *rbtree.RBTree {
		tree := rbtree.NewRBTree(rbtree.NewAllocator())
		for _, key := range keys {
			_, err := tree.Insert(rbtree.Item{Key: key})
			require.NoError(t, err)
		}

		tree.ResetStats()

		return tree
	}

	ascending := build(1, 2, 3, 4)
	descending := build(4, 3, 2, 1)

	// Same keys, same size and black height, different layout.
	up, down := shapeOf(ascending, true), shapeOf(descending, true)
	assert.Equal(t, up.size, down.size)
	assert.Equal(t, up.blackHeight, down.blackHeight)
	assert.Equal(t, up.height, down.height)
	assert.NotEqual(t, up.layout, down.layout)

	cheap := shapeOf(ascending, false)
	assert.Zero(t, cheap.layout)
	assert.Zero(t, cheap.height)

	assert.False(t, ascending.Delete(7))
	assert.Equal(t, up, shapeOf(ascending, true))

	// A delete and re-insert restores the keys but not the stats.
	require.True(t, ascending.Delete(2))
	_, err := ascending.Insert(rbtree.Item{Key: 2})
	require.NoError(t, err)
	assert.NotEqual(t, up, shapeOf(ascending, true))
}
