// Package bench drives a seeded random insert/delete workload against the tree
// and checks it against a multiset oracle.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// Bench errors.
var (
	ErrInvalidConfig  = errors.New("invalid bench config")
	ErrOracleMismatch = errors.New("tree contents differ from the oracle")
	ErrAbsentDelete   = errors.New("deleting a missing key changed the tree")
)

// Operation names passed to the Recorder.
const (
	OpInsert = "insert"
	OpDelete = "delete"
)

const tracerName = "github.com/Sumatoshi-tech/redblack/pkg/bench"

// Recorder receives workload telemetry. observability.TreeMetrics implements it.
type Recorder interface {
	RecordOp(ctx context.Context, op string, hit bool, elapsed time.Duration)
	RecordFixups(ctx context.Context, delta rbtree.FixupStats)
	RecordShape(ctx context.Context, size, height int)
	RecordViolation(ctx context.Context, kind string)
}

// Config describes one workload.
type Config struct {
	Operations  int     `json:"operations"   yaml:"operations"`
	KeySpace    int     `json:"key_space"    yaml:"key_space"`
	DeleteRatio float64 `json:"delete_ratio" yaml:"delete_ratio"`
	Seed        uint64  `json:"seed"         yaml:"seed"`
	// CheckEvery runs a full Validate every that many operations per shard. Zero checks only at the end.
	CheckEvery  int `json:"check_every"  yaml:"check_every"`
	SampleEvery int `json:"sample_every" yaml:"sample_every"`
	Shards      int `json:"shards"       yaml:"shards"`
	MaxNodes    int `json:"max_nodes"    yaml:"max_nodes"`
}

// Sample is one point of the height curve.
type Sample struct {
	Shard  int     `json:"shard"  yaml:"shard"`
	Ops    int     `json:"ops"    yaml:"ops"`
	Size   int     `json:"size"   yaml:"size"`
	Height int     `json:"height" yaml:"height"`
	Bound  float64 `json:"bound"  yaml:"bound"`
}

// Result is the outcome of Run.
type Result struct {
	Config     Config            `json:"config"      yaml:"config"`
	Operations int               `json:"operations"  yaml:"operations"`
	Inserts    int               `json:"inserts"     yaml:"inserts"`
	Deletes    int               `json:"deletes"     yaml:"deletes"`
	Misses     int               `json:"misses"      yaml:"misses"`
	Full       int               `json:"full"        yaml:"full"`
	Skipped    int               `json:"skipped"     yaml:"skipped"`
	Checks     int               `json:"checks"      yaml:"checks"`
	Final      int               `json:"final"       yaml:"final"`
	MaxHeight  int               `json:"max_height"  yaml:"max_height"`
	Duration   time.Duration     `json:"duration"    yaml:"duration"`
	Fixups     map[string]uint64 `json:"fixups"      yaml:"fixups"`
	Samples    []Sample          `json:"samples"     yaml:"samples"`
	Passed     bool              `json:"passed"      yaml:"passed"`
	Failure    string            `json:"failure,omitempty" yaml:"failure,omitempty"`

	Stats rbtree.FixupStats `json:"-" yaml:"-"`
}

// HeightBound is the red-black height limit 2*log2(n+1) for n nodes.
func HeightBound(size int) float64 {
	return 2 * math.Log2(float64(size)+1)
}

// Validate checks the workload parameters.
func (cfg Config) Validate() error {
	switch {
	case cfg.Operations <= 0:
		return fmt.Errorf("%w: operations must be positive", ErrInvalidConfig)
	case cfg.KeySpace <= 0 || cfg.KeySpace > 1<<32:
		return fmt.Errorf("%w: key space %d out of range", ErrInvalidConfig, cfg.KeySpace)
	case cfg.DeleteRatio < 0 || cfg.DeleteRatio > 1:
		return fmt.Errorf("%w: delete ratio %g out of range", ErrInvalidConfig, cfg.DeleteRatio)
	case cfg.CheckEvery < 0 || cfg.SampleEvery < 0 || cfg.MaxNodes < 0:
		return fmt.Errorf("%w: negative interval or cap", ErrInvalidConfig)
	}

	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordOp(context.Context, string, bool, time.Duration) {}
func (nopRecorder) RecordFixups(context.Context, rbtree.FixupStats)         {}
func (nopRecorder) RecordShape(context.Context, int, int)                   {}
func (nopRecorder) RecordViolation(context.Context, string)                 {}

// Run executes the workload. With more than one shard every shard gets its own
// goroutine, oracle and random stream. A failed check stops the run; the
// returned Result is still filled in and has Passed set to false.
func Run(ctx context.Context, cfg Config, logger *slog.Logger, rec Recorder) (Result, error) {
	err := cfg.Validate()
	if err != nil {
		return Result{Config: cfg}, err
	}

	if rec == nil {
		rec = nopRecorder{}
	}

	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "bench.run", trace.WithAttributes(
		attribute.Int("bench.operations", cfg.Operations),
		attribute.Int("bench.key_space", cfg.KeySpace),
		attribute.Int("bench.shards", cfg.Shards),
		attribute.Int64("bench.seed", int64(cfg.Seed)), //nolint:gosec // attribute only.
	))
	defer span.End()

	logger.InfoContext(ctx, "bench started",
		"operations", cfg.Operations, "key_space", cfg.KeySpace, "delete_ratio", cfg.DeleteRatio,
		"seed", cfg.Seed, "shards", cfg.Shards)

	st := rbtree.NewShardedTree(cfg.Shards, cfg.MaxNodes, 0)
	workers := make([]*worker, cfg.Shards)

	for idx := range workers {
		workers[idx] = newWorker(cfg, idx, st, rec)
	}

	start := time.Now()
	errs := make([]error, len(workers))

	var wg sync.WaitGroup

	for idx, wrk := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[idx] = wrk.run(ctx)
		}()
	}

	wg.Wait()

	result := collect(cfg, workers, time.Since(start))
	result.Stats = st.Stats()
	result.Fixups = fixupCounts(result.Stats)

	err = errors.Join(errs...)
	if err != nil {
		result.Failure = err.Error()

		span.RecordError(err)
		span.SetStatus(codes.Error, "bench failed")
		logger.ErrorContext(ctx, "bench failed", "error", err, "operations", result.Operations)

		return result, fmt.Errorf("bench: %w", err)
	}

	result.Passed = true

	span.SetAttributes(attribute.Int("bench.final", result.Final), attribute.Int("bench.max_height", result.MaxHeight))
	logger.InfoContext(ctx, "bench passed",
		"operations", result.Operations, "final", result.Final, "max_height", result.MaxHeight,
		"duration", result.Duration)

	return result, nil
}

func collect(cfg Config, workers []*worker, elapsed time.Duration) Result {
	result := Result{Config: cfg, Duration: elapsed}

	for _, wrk := range workers {
		result.Operations += wrk.done
		result.Inserts += wrk.inserts
		result.Deletes += wrk.deletes
		result.Misses += wrk.misses
		result.Full += wrk.full
		result.Skipped += wrk.skipped
		result.Checks += wrk.checks
		result.Final += len(wrk.live)
		result.MaxHeight = max(result.MaxHeight, wrk.maxHeight)
		result.Samples = append(result.Samples, wrk.samples...)
	}

	sort.SliceStable(result.Samples, func(i, j int) bool {
		return result.Samples[i].Ops < result.Samples[j].Ops
	})

	return result
}

func fixupCounts(stats rbtree.FixupStats) map[string]uint64 {
	counts := make(map[string]uint64)

	for _, fc := range rbtree.FixupCases() {
		counts[fc.String()] = stats.Count(fc)
	}

	return counts
}

// violationKind maps a Validate error to a short metric label.
func violationKind(err error) string {
	kinds := []struct {
		target error
		kind   string
	}{
		{rbtree.ErrRootNotBlack, "root_not_black"},
		{rbtree.ErrRedViolation, "red_red"},
		{rbtree.ErrBlackViolation, "black_height"},
		{rbtree.ErrOrderViolation, "order"},
		{rbtree.ErrParentLink, "parent_link"},
		{rbtree.ErrCountMismatch, "count"},
		{ErrOracleMismatch, "oracle"},
		{ErrAbsentDelete, "absent_delete"},
		{ErrHeightBound, "height"},
	}

	for _, candidate := range kinds {
		if errors.Is(err, candidate.target) {
			return candidate.kind
		}
	}

	return "other"
}
