package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "redblack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultTreeShards, cfg.Tree.Shards)
	assert.Equal(t, config.DefaultTreeMaxNodes, cfg.Tree.MaxNodes)
	assert.Equal(t, config.DefaultBenchOperations, cfg.Bench.Operations)
	assert.Equal(t, config.DefaultBenchKeySpace, cfg.Bench.KeySpace)
	assert.InDelta(t, config.DefaultBenchDeleteRatio, cfg.Bench.DeleteRatio, 1e-9)
	assert.Equal(t, uint64(config.DefaultBenchSeed), cfg.Bench.Seed)
	assert.Equal(t, config.DefaultBenchCheckEvery, cfg.Bench.CheckEvery)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLoggingFormat, cfg.Logging.Format)
	assert.Equal(t, config.DefaultMetricsListen, cfg.Metrics.Listen)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
tree:
  shards: 4
  max_nodes: 100000
  hibernation_threshold: 5000
bench:
  operations: 500
  key_space: 64
  delete_ratio: 0.5
  seed: 42
  check_every: 10
logging:
  level: debug
  format: json
metrics:
  enabled: true
  otlp_endpoint: "collector:4317"
  otlp_insecure: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Tree.Shards)
	assert.Equal(t, 100000, cfg.Tree.MaxNodes)
	assert.Equal(t, 5000, cfg.Tree.HibernationThreshold)
	assert.Equal(t, 500, cfg.Bench.Operations)
	assert.Equal(t, 64, cfg.Bench.KeySpace)
	assert.InDelta(t, 0.5, cfg.Bench.DeleteRatio, 1e-9)
	assert.Equal(t, uint64(42), cfg.Bench.Seed)
	assert.Equal(t, 10, cfg.Bench.CheckEvery)
	assert.Equal(t, config.DefaultBenchSampleEvery, cfg.Bench.SampleEvery)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "collector:4317", cfg.Metrics.OTLPEndpoint)
	assert.True(t, cfg.Metrics.OTLPInsecure)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("REDBLACK_TREE_SHARDS", "8")
	t.Setenv("REDBLACK_BENCH_SEED", "7")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Tree.Shards)
	assert.Equal(t, uint64(7), cfg.Bench.Seed)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "tree: [unclosed"))
	require.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    error
	}{
		{"zero shards", "tree:\n  shards: 0\n", config.ErrInvalidShards},
		{"negative max nodes", "tree:\n  max_nodes: -1\n", config.ErrInvalidMaxNodes},
		{"zero operations", "bench:\n  operations: 0\n", config.ErrInvalidOperations},
		{"zero key space", "bench:\n  key_space: 0\n", config.ErrInvalidKeySpace},
		{"huge key space", "bench:\n  key_space: 8589934592\n", config.ErrInvalidKeySpace},
		{"ratio above one", "bench:\n  delete_ratio: 1.5\n", config.ErrInvalidDeleteRatio},
		{"negative check", "bench:\n  check_every: -1\n", config.ErrInvalidCheckEvery},
		{"unknown level", "logging:\n  level: chatty\n", config.ErrInvalidLogLevel},
		{"unknown format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestConfigValidateAfterOverride(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	cfg.Tree.Shards = -2
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidShards)
}
