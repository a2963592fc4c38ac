package rbtree //nolint:testpackage // shares test helpers with the white-box tests.

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 2, 1, 3)

	var buf bytes.Buffer
	require.NoError(t, tree.Dump(&buf))
	assert.Equal(t, "1 red 2\n2 black <-- root node\n3 red 2\n", buf.String())

	buf.Reset()
	require.NoError(t, testNewIntSet().Dump(&buf))
	assert.Empty(t, buf.String())
}

func TestPrint(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 2, 1, 3)

	var buf bytes.Buffer
	assert.Equal(t, 2, tree.Print(&buf))
	assert.Equal(t,
		"       /------+ 3*\n"+
			"|------+ 2\n"+
			"       \\------+ 1*\n",
		buf.String())

	buf.Reset()
	assert.Equal(t, 0, testNewIntSet().Print(&buf))
	assert.Empty(t, buf.String())
}

func TestPrintDeep(t *testing.T) {
	t.Parallel()

	tree := testNewIntSet()
	mustInsert(t, tree, 2, 1, 3, 4)

	var buf bytes.Buffer
	assert.Equal(t, 3, tree.Print(&buf))
	assert.Equal(t,
		"              /------+ 4*\n"+
			"       /------+ 3\n"+
			"|------+ 2\n"+
			"       \\------+ 1\n",
		buf.String())
}
