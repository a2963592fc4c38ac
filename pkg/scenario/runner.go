package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// ErrStepFailed is returned when a step's expectation does not hold or the
// tree breaks an invariant while the step runs.
var ErrStepFailed = errors.New("scenario step failed")

// Report summarizes a replay.
type Report struct {
	Name       string
	Steps      int
	Inserted   int
	Deleted    int
	Missed     int
	Final      []int32
	Height     int
	Stats      rbtree.FixupStats
	FailedStep int
}

// Run replays sc against tree, which is usually empty. Every single insert and
// delete is followed by a full Validate. On failure the returned Report covers
// the steps up to and including the failing one, FailedStep is its 1-based index.
func Run(ctx context.Context, sc *Scenario, tree *rbtree.RBTree, logger *slog.Logger) (Report, error) {
	report := Report{Name: sc.Name}
	before := tree.Stats()

	finish := func() {
		report.Final = slices.Collect(tree.Keys())
		report.Height = tree.Height()
		report.Stats = tree.Stats().Sub(before)
	}

	for idx, step := range sc.Steps {
		err := ctx.Err()
		if err != nil {
			finish()

			return report, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}

		report.Steps++

		err = runStep(tree, step, &report)
		if err != nil {
			report.FailedStep = idx + 1
			finish()

			return report, fmt.Errorf("scenario %s, step %d (%s): %w", sc.Name, idx+1, step.Op, err)
		}

		logger.DebugContext(ctx, "step done", "scenario", sc.Name, "step", idx+1, "op", step.Op, "len", tree.Len())
	}

	finish()

	logger.InfoContext(ctx, "scenario passed",
		"scenario", sc.Name, "steps", report.Steps, "len", len(report.Final), "height", report.Height)

	return report, nil
}

func runStep(tree *rbtree.RBTree, step Step, report *Report) error {
	switch step.Op {
	case OpInsert:
		for _, key := range step.Keys {
			_, err := tree.Insert(rbtree.Item{Key: key, Value: uint32(key)}) //nolint:gosec // the value mirrors the key bits.
			if err != nil {
				return fmt.Errorf("insert %d: %w", key, err)
			}

			report.Inserted++

			err = tree.Validate()
			if err != nil {
				return fmt.Errorf("%w: after inserting %d: %w", ErrStepFailed, key, err)
			}
		}
	case OpDelete:
		for _, key := range step.Keys {
			if tree.Delete(key) {
				report.Deleted++
			} else {
				report.Missed++
			}

			err := tree.Validate()
			if err != nil {
				return fmt.Errorf("%w: after deleting %d: %w", ErrStepFailed, key, err)
			}
		}
	case OpExpect:
		got := slices.Collect(tree.Keys())
		if !slices.Equal(got, step.Keys) {
			return fmt.Errorf("%w: in-order keys differ:\n%s", ErrStepFailed, DiffKeys(step.Keys, got))
		}
	case OpContains:
		for _, key := range step.Keys {
			if !tree.Contains(key) {
				return fmt.Errorf("%w: key %d is missing", ErrStepFailed, key)
			}
		}
	case OpAbsent:
		for _, key := range step.Keys {
			if tree.Contains(key) {
				return fmt.Errorf("%w: key %d is present", ErrStepFailed, key)
			}
		}
	case OpValidate:
		err := tree.Validate()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStepFailed, err)
		}
	case OpClear:
		tree.Clear()
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, step.Op)
	}

	return nil
}

// DiffKeys renders a line diff of two key sequences, one key per line,
// prefixed by "-" for keys only in want and "+" for keys only in got.
func DiffKeys(want, got []int32) string {
	dmp := diffmatchpatch.New()

	wantChars, gotChars, lines := dmp.DiffLinesToChars(keyLines(want), keyLines(got))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(wantChars, gotChars, false), lines)

	var out strings.Builder

	for _, diff := range diffs {
		prefix := "  "

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffEqual:
		}

		for line := range strings.SplitSeq(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			out.WriteString(prefix + line + "\n")
		}
	}

	return out.String()
}

func keyLines(keys []int32) string {
	var out strings.Builder

	for _, key := range keys {
		out.WriteString(strconv.FormatInt(int64(key), 10))
		out.WriteByte('\n')
	}

	return out.String()
}
