package config

// Tree defaults.
const (
	DefaultTreeMaxNodes             = 0
	DefaultTreeHibernationThreshold = 0
	DefaultTreeShards               = 1
)

// Bench defaults.
const (
	DefaultBenchOperations  = 100_000
	DefaultBenchKeySpace    = 1 << 16
	DefaultBenchDeleteRatio = 0.4
	DefaultBenchSeed        = 1
	DefaultBenchCheckEvery  = 1000
	DefaultBenchSampleEvery = 1000
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Metrics defaults.
const (
	DefaultMetricsEnabled      = false
	DefaultMetricsListen       = ":9464"
	DefaultMetricsOTLPEndpoint = ""
	DefaultMetricsOTLPInsecure = false
)
