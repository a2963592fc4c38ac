package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/cmd/redblack/commands"
	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := commands.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "redblack dev"))
}

func TestRoot_Flags(t *testing.T) {
	t.Parallel()

	root := commands.NewRootCommand()

	for _, name := range []string{"config", "verbose", "quiet", "log-json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	for _, name := range []string{"bench", "replay", "dump", "snapshot", "report", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestDump(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "dump", "2", "1", "3")
	require.NoError(t, err)
	assert.Equal(t, "1 red 2\n2 black <-- root node\n3 red 2\n", out)

	out, _, err = execute(t, "dump", "--ascii", "2", "1", "3")
	require.NoError(t, err)
	assert.Equal(t, "       /------+ 3*\n|------+ 2\n       \\------+ 1*\n", out)

	out, _, err = execute(t, "dump", "--delete", "1,7", "2", "1", "3")
	require.NoError(t, err)
	assert.Equal(t, "2 black <-- root node\n3 red 2\n", out)
}

func TestDump_NegativeKeys(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "dump", "10", "-10", "40", "-20", "-5", "20", "60", "50", "80")
	require.NoError(t, err)
	assert.Equal(t, "-20 red -10\n"+
		"-10 black 10\n"+
		"-5 red -10\n"+
		"10 black <-- root node\n"+
		"20 black 40\n"+
		"40 red 10\n"+
		"50 red 60\n"+
		"60 black 40\n"+
		"80 red 60\n", out)

	out, _, err = execute(t, "dump", "--delete=-20,40", "10", "-10", "40", "-20", "-5", "20", "60", "50", "80")
	require.NoError(t, err)
	assert.Contains(t, out, "<-- root node\n")
	assert.NotContains(t, out, "40")
	assert.NotContains(t, out, "-20")

	out, _, err = execute(t, "dump", "--", "-20", "10")
	require.NoError(t, err)
	assert.Equal(t, "-20 black <-- root node\n10 red -20\n", out)
}

func TestDump_InvalidKey(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "dump", "1", "x")
	require.Error(t, err)

	_, _, err = execute(t, "dump", "2147483648")
	require.Error(t, err)

	_, _, err = execute(t, "dump")
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "replay", "--list")
	require.NoError(t, err)
	assert.Equal(t, "drain\nduplicates\nnine-keys\nnine-keys-delete\n", out)

	out, _, err = execute(t, "replay", "nine-keys", "drain")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS nine-keys (4 steps, 9 keys")
	assert.Contains(t, out, "PASS drain")

	out, _, err = execute(t, "replay", "--dump", "duplicates")
	require.NoError(t, err)
	assert.Contains(t, out, "------+ ")
}

func TestReplay_Failures(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: bad\nsteps:\n  - op: insert\n    keys: [1]\n  - op: expect\n    keys: [2]\n"), 0o600))

	out, _, err := execute(t, "replay", "nine-keys", path, "no-such-scenario")
	require.ErrorIs(t, err, commands.ErrScenariosFailed)
	assert.Contains(t, out, "PASS nine-keys")
	assert.Contains(t, out, "FAIL bad")
	assert.Contains(t, out, "- 2")
	assert.Contains(t, out, "+ 1")
	assert.Contains(t, out, "FAIL no-such-scenario")

	_, _, err = execute(t, "replay")
	require.Error(t, err)
}

func TestSnapshot_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tree.rbt")

	out, _, err := execute(t, "snapshot", "save", path, "10", "-10", "40", "-20", "-5", "20", "60", "50", "80")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 9 nodes")

	out, _, err = execute(t, "snapshot", "load", "--dump", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS "+path+": 9 nodes")
	assert.Contains(t, out, "<-- root node")

	file, err := os.Open(path)
	require.NoError(t, err)

	defer file.Close()

	tree, err := rbtree.ReadSnapshot(file)
	require.NoError(t, err)
	assert.Equal(t, 9, tree.Len())
}

func TestSnapshot_LoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.rbt")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))

	_, _, err := execute(t, "snapshot", "load", path)
	require.ErrorIs(t, err, rbtree.ErrBadSnapshot)

	_, _, err = execute(t, "snapshot", "load", filepath.Join(t.TempDir(), "missing.rbt"))
	require.Error(t, err)
}

func TestBench_ReportAndPlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plot := filepath.Join(dir, "height.html")
	reports := filepath.Join(dir, "reports")

	out, _, err := execute(t, "bench", "--ops", "2000", "--keys", "256", "--check-every", "100",
		"--sample-every", "200", "--shards", "2", "--plot", plot, "--report", reports, "--report-format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "bench PASS")
	assert.Contains(t, out, "fixup cases")
	assert.Contains(t, out, "delete_far_nephew")
	assert.Contains(t, out, "2,000")

	html, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")

	assert.FileExists(t, filepath.Join(reports, "bench-report.yaml"))

	out, _, err = execute(t, "report", "--format", "yaml", reports)
	require.NoError(t, err)
	assert.Contains(t, out, "bench PASS")
	assert.Contains(t, out, "2,000")

	_, _, err = execute(t, "report", reports)
	require.Error(t, err)
}

func TestBench_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	out, stderr, err := execute(t, "bench", "--ops", "500", "--keys", "64", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "bench PASS")
	assert.Contains(t, stderr, "serving metrics")
}

func TestBench_InvalidFlags(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "bench", "--delete-ratio", "2")
	require.ErrorIs(t, err, config.ErrInvalidDeleteRatio)

	_, _, err = execute(t, "bench", "--shards", "0")
	require.ErrorIs(t, err, config.ErrInvalidShards)

	_, _, err = execute(t, "bench", "--report-format", "xml")
	require.Error(t, err)
}

func TestBench_ConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "redblack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"bench:\n  operations: 300\n  key_space: 32\n  seed: 9\nlogging:\n  format: json\n"), 0o600))

	out, stderr, err := execute(t, "--config", path, "bench")
	require.NoError(t, err)
	assert.Contains(t, out, "bench PASS")
	assert.Contains(t, out, "300")
	assert.Contains(t, stderr, `"msg":"bench passed"`)
}
