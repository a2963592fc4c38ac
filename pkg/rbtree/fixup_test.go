package rbtree //nolint:testpackage // tests inspect node colors and fixup counters.

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shape renders the tree as nested "key color" lists for exact structure checks.
func shape(tree *RBTree, nodeIdx uint32) any {
	if nodeIdx == 0 {
		return nil
	}

	nd := tree.storage()[nodeIdx]

	return []any{nd.item.Key, colorName(nd.color), shape(tree, nd.left), shape(tree, nd.right)}
}

func leaf(key int32, color string) []any {
	return []any{key, color, nil, nil}
}

func TestInsertRotationCases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		keys []int32
		want FixupCase
	}{
		{[]int32{3, 2, 1}, InsertLeftLeft},
		{[]int32{3, 1, 2}, InsertLeftRight},
		{[]int32{1, 2, 3}, InsertRightRight},
		{[]int32{1, 3, 2}, InsertRightLeft},
	}

	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			t.Parallel()

			tree := testNewIntSet()
			mustInsert(t, tree, tc.keys...)
			require.NoError(t, tree.Validate())

			stats := tree.Stats()
			assert.Equal(t, uint64(1), stats.Count(InsertRoot))
			assert.Equal(t, uint64(1), stats.Count(tc.want))
			assert.Equal(t, uint64(2), stats.Total())
			assert.Equal(t, []any{int32(2), "black", leaf(1, "red"), leaf(3, "red")}, shape(tree, tree.root))
		})
	}
}

func TestInsertRecolor(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 2, 1, 3)
	tree.ResetStats()

	mustInsert(t, tree, 4)
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(InsertRecolor))
	assert.Equal(t, uint64(1), stats.Count(InsertRoot))
	assert.Equal(t, []any{
		int32(2), "black",
		leaf(1, "black"),
		[]any{int32(3), "black", nil, leaf(4, "red")},
	}, shape(tree, tree.root))
}

func TestDeleteSimple(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 2, 1, 3)
	tree.ResetStats()

	testAssert(t, tree.Delete(1), "delete red leaf")
	testAssert(t, tree.Delete(2), "delete root with red successor")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(2), stats.Count(DeleteSimple))
	assert.Equal(t, uint64(2), stats.Total())
	assert.Equal(t, leaf(3, "black"), shape(tree, tree.root))
}

// blackTriangle returns 2b (1b, 3b).
func blackTriangle(tb testing.TB) *RBTree {
	tb.Helper()

	tree := testNewIntSet()
	mustInsert(tb, tree, 2, 1, 3, 4)
	require.True(tb, tree.Delete(4))
	require.Equal(tb, []any{int32(2), "black", leaf(1, "black"), leaf(3, "black")}, shape(tree, tree.root))
	tree.ResetStats()

	return tree
}

func TestDeletePushUpToRoot(t *testing.T) {
	t.Parallel()

	tree := blackTriangle(t)
	testAssert(t, tree.Delete(1), "delete 1")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(DeletePushUp))
	assert.Equal(t, uint64(1), stats.Count(DeleteRoot))
	assert.Equal(t, []any{int32(2), "black", nil, leaf(3, "red")}, shape(tree, tree.root))
}

func TestDeleteFarNephew(t *testing.T) {
	t.Parallel()

	tree := blackTriangle(t)
	mustInsert(t, tree, 4)
	tree.ResetStats()

	testAssert(t, tree.Delete(1), "delete 1")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(DeleteFarNephew))
	assert.Equal(t, uint64(1), stats.Total())
	assert.Equal(t, []any{int32(3), "black", leaf(2, "black"), leaf(4, "black")}, shape(tree, tree.root))
}

func TestDeleteNearNephew(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 10, 5, 20, 25)
	require.True(t, tree.Delete(25))
	mustInsert(t, tree, 15)
	tree.ResetStats()

	testAssert(t, tree.Delete(5), "delete 5")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(DeleteNearNephew))
	assert.Equal(t, uint64(1), stats.Count(DeleteFarNephew))
	assert.Equal(t, []any{int32(15), "black", leaf(10, "black"), leaf(20, "black")}, shape(tree, tree.root))
}

// redUncleTree returns 2b (1b, 4r (3b, 5b)).
func redUncleTree(tb testing.TB) *RBTree {
	tb.Helper()

	tree := testNewIntSet()
	mustInsert(tb, tree, 2, 1, 3, 4, 5, 6)
	require.True(tb, tree.Delete(6))
	require.Equal(tb, []any{
		int32(2), "black",
		leaf(1, "black"),
		[]any{int32(4), "red", leaf(3, "black"), leaf(5, "black")},
	}, shape(tree, tree.root))
	tree.ResetStats()

	return tree
}

func TestDeleteAbsorb(t *testing.T) {
	t.Parallel()

	tree := redUncleTree(t)
	testAssert(t, tree.Delete(3), "delete 3")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(DeleteAbsorb))
	assert.Equal(t, uint64(1), stats.Total())
	assert.Equal(t, []any{
		int32(2), "black",
		leaf(1, "black"),
		[]any{int32(4), "black", nil, leaf(5, "red")},
	}, shape(tree, tree.root))
}

func TestDeleteRedSibling(t *testing.T) {
	t.Parallel()

	tree := redUncleTree(t)
	testAssert(t, tree.Delete(1), "delete 1")
	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	assert.Equal(t, uint64(1), stats.Count(DeleteRedSibling))
	assert.Equal(t, uint64(1), stats.Count(DeleteAbsorb))
	assert.Equal(t, []any{
		int32(4), "black",
		[]any{int32(2), "black", nil, leaf(3, "red")},
		leaf(5, "black"),
	}, shape(tree, tree.root))
}

func TestRandomWorkloadHitsEveryCase(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	rng := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test data.

	for round := range 20000 {
		if rng.IntN(3) > 0 || tree.Len() == 0 {
			mustInsert(t, tree, rng.Int32N(5000))
		} else {
			tree.DeleteWithIterator(tree.FindGE(rng.Int32N(5000)).orMax())
		}

		if round%1000 == 0 {
			require.NoError(t, tree.Validate())
		}
	}

	require.NoError(t, tree.Validate())

	// Draining through the root ends with a lone black root.
	for tree.Len() > 0 {
		tree.DeleteWithIterator(tree.Root())
	}

	require.NoError(t, tree.Validate())

	stats := tree.Stats()
	for _, fc := range FixupCases() {
		assert.Positive(t, stats.Count(fc), fc.String())
	}
}

// orMax maps Limit() to the maximum so that random deletions always hit a node.
func (iter Iterator) orMax() Iterator {
	if iter.Limit() {
		return iter.tree.Max()
	}

	return iter
}

func TestFixupStatsArithmetic(t *testing.T) {
	t.Parallel()

	var first, second FixupStats

	first.record(InsertRoot)
	first.record(DeleteFarNephew)
	second.record(DeleteFarNephew)
	second.record(DeleteFarNephew)

	sum := first
	sum.Add(second)
	assert.Equal(t, uint64(3), sum.Count(DeleteFarNephew))
	assert.Equal(t, uint64(4), sum.Total())

	diff := sum.Sub(first)
	assert.Equal(t, second, diff)
	assert.Equal(t, uint64(0), sum.Count(numFixupCases))
	assert.Equal(t, "unknown", numFixupCases.String())
	assert.Equal(t, "delete_near_nephew", DeleteNearNephew.String())
	assert.Len(t, FixupCases(), int(numFixupCases))
}
