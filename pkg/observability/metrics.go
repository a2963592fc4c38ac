package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const (
	metricOpsTotal       = "redblack.tree.operations.total"
	metricOpDuration     = "redblack.tree.operation.duration.seconds"
	metricFixupsTotal    = "redblack.tree.fixups.total"
	metricViolationTotal = "redblack.tree.violations.total"
	metricTreeSize       = "redblack.tree.size"
	metricTreeHeight     = "redblack.tree.height"

	attrOp      = "op"
	attrOutcome = "outcome"
	attrCase    = "case"
	attrKind    = "kind"

	outcomeHit  = "hit"
	outcomeMiss = "miss"
)

// opBucketBoundaries covers 100ns to 10ms: single tree operations, including
// the occasional slow one behind a full validation pass.
var opBucketBoundaries = []float64{1e-7, 2.5e-7, 5e-7, 1e-6, 2.5e-6, 5e-6, 1e-5, 1e-4, 1e-3, 1e-2}

// TreeMetrics holds the OTel instruments for tree workloads.
type TreeMetrics struct {
	opsTotal       metric.Int64Counter
	opDuration     metric.Float64Histogram
	fixupsTotal    metric.Int64Counter
	violationTotal metric.Int64Counter
	size           metric.Int64Gauge
	height         metric.Int64Gauge
}

// NewTreeMetrics creates tree metric instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Tree operations by kind and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	opDuration, err := mt.Float64Histogram(metricOpDuration,
		metric.WithDescription("Tree operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(opBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpDuration, err)
	}

	fixupsTotal, err := mt.Int64Counter(metricFixupsTotal,
		metric.WithDescription("Rebalancing cases taken by insertions and deletions"),
		metric.WithUnit("{case}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFixupsTotal, err)
	}

	violationTotal, err := mt.Int64Counter(metricViolationTotal,
		metric.WithDescription("Invariant or oracle violations detected"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricViolationTotal, err)
	}

	size, err := mt.Int64Gauge(metricTreeSize,
		metric.WithDescription("Number of items in the tree"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeSize, err)
	}

	height, err := mt.Int64Gauge(metricTreeHeight,
		metric.WithDescription("Nodes on the longest root-to-leaf path"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeHeight, err)
	}

	return &TreeMetrics{
		opsTotal:       opsTotal,
		opDuration:     opDuration,
		fixupsTotal:    fixupsTotal,
		violationTotal: violationTotal,
		size:           size,
		height:         height,
	}, nil
}

// RecordOp records one operation. hit tells whether the key was found (or inserted).
func (tm *TreeMetrics) RecordOp(ctx context.Context, op string, hit bool, elapsed time.Duration) {
	outcome := outcomeMiss
	if hit {
		outcome = outcomeHit
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrOutcome, outcome),
	)

	tm.opsTotal.Add(ctx, 1, attrs)
	tm.opDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordFixups adds the per-case counts of delta.
func (tm *TreeMetrics) RecordFixups(ctx context.Context, delta rbtree.FixupStats) {
	for _, fc := range rbtree.FixupCases() {
		count := delta.Count(fc)
		if count == 0 {
			continue
		}

		tm.fixupsTotal.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrCase, fc.String()))) //nolint:gosec // counts stay far below MaxInt64.
	}
}

// RecordShape records the current size and height of the tree.
func (tm *TreeMetrics) RecordShape(ctx context.Context, size, height int) {
	tm.size.Record(ctx, int64(size))
	tm.height.Record(ctx, int64(height))
}

// RecordViolation counts a detected violation of the given kind.
func (tm *TreeMetrics) RecordViolation(ctx context.Context, kind string) {
	tm.violationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
