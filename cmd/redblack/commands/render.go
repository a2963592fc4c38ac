package commands

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/redblack/pkg/bench"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const (
	scatterSymbolSize = 4
	boundLineWidth    = 2
)

// status renders PASS in green or FAIL in red.
func status(passed bool) string {
	if passed {
		return color.New(color.FgGreen, color.Bold).Sprint("PASS")
	}

	return color.New(color.FgRed, color.Bold).Sprint("FAIL")
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

// renderBenchResult prints the summary table and the fixup case counts.
func renderBenchResult(out io.Writer, result *bench.Result) {
	cfg := result.Config

	summary := newTable()
	summary.SetTitle("bench " + status(result.Passed))
	summary.AppendHeader(table.Row{"metric", "value"})
	summary.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	summary.AppendRows([]table.Row{
		{"operations", count(result.Operations)},
		{"inserts", count(result.Inserts)},
		{"deletes", count(result.Deletes)},
		{"missing deletes", count(result.Misses)},
		{"rejected inserts", count(result.Full)},
		{"skipped", count(result.Skipped)},
		{"validations", count(result.Checks)},
		{"final size", count(result.Final)},
		{"max height", result.MaxHeight},
		{"height bound", fmt.Sprintf("%.1f", bench.HeightBound(result.Final))},
		{"shards", cfg.Shards},
		{"seed", cfg.Seed},
		{"duration", result.Duration.String()},
		{"ops/s", opsPerSecond(result)},
	})

	if result.Failure != "" {
		summary.AppendFooter(table.Row{"failure", result.Failure})
	}

	fmt.Fprintln(out, summary.Render())

	fixups := newTable()
	fixups.SetTitle("fixup cases")
	fixups.AppendHeader(table.Row{"case", "count"})
	fixups.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	var total uint64

	for _, fc := range rbtree.FixupCases() {
		n := result.Fixups[fc.String()]
		total += n

		fixups.AppendRow(table.Row{fc.String(), humanize.Comma(int64(n))}) //nolint:gosec // counts fit int64.
	}

	fixups.AppendFooter(table.Row{"total", humanize.Comma(int64(total))}) //nolint:gosec // counts fit int64.

	fmt.Fprintln(out, fixups.Render())
}

func opsPerSecond(result *bench.Result) string {
	seconds := result.Duration.Seconds()
	if seconds <= 0 {
		return "-"
	}

	return humanize.CommafWithDigits(float64(result.Operations)/seconds, 0)
}

// renderHeightChart writes an HTML scatter chart of sampled heights against the
// node count, overlaid with the 2*log2(n+1) bound.
func renderHeightChart(w io.Writer, result *bench.Result) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Tree height",
			Subtitle: fmt.Sprintf("%s operations, seed %d", count(result.Operations), result.Config.Seed),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "nodes", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "height", Type: "value"}),
	)

	byShard := make(map[int][]opts.ScatterData)
	sizes := make([]int, 0, len(result.Samples))

	for _, sample := range result.Samples {
		byShard[sample.Shard] = append(byShard[sample.Shard], opts.ScatterData{
			Value:      []any{sample.Size, sample.Height},
			SymbolSize: scatterSymbolSize,
		})
		sizes = append(sizes, sample.Size)
	}

	shards := make([]int, 0, len(byShard))
	for shard := range byShard {
		shards = append(shards, shard)
	}

	slices.Sort(shards)

	for _, shard := range shards {
		name := "height"
		if len(shards) > 1 {
			name = "height shard " + strconv.Itoa(shard)
		}

		scatter.AddSeries(name, byShard[shard])
	}

	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	boundData := make([]opts.LineData, len(sizes))
	for idx, size := range sizes {
		boundData[idx] = opts.LineData{Value: []any{size, bench.HeightBound(size)}}
	}

	bound := charts.NewLine()
	bound.AddSeries("2·log2(n+1)", boundData,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: boundLineWidth}),
	)

	scatter.Overlap(bound)

	err := scatter.Render(w)
	if err != nil {
		return fmt.Errorf("render height chart: %w", err)
	}

	return nil
}
