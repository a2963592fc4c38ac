package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/bench"
	"github.com/Sumatoshi-tech/redblack/pkg/persist"
)

func newReportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report <dir>",
		Short: "Show a bench report saved with bench --report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := persist.CodecFor(format)
			if err != nil {
				return err
			}

			result, err := persist.NewPersister[bench.Result](reportBasename, codec).Load(args[0])
			if err != nil {
				return err
			}

			renderBenchResult(cmd.OutOrStdout(), result)

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", persist.FormatJSON, "report format: json or yaml")

	return cmd
}
