package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/scenario"
)

// ErrScenariosFailed is returned when at least one replayed scenario fails.
var ErrScenariosFailed = errors.New("scenarios failed")

func newReplayCommand(global *globalFlags) *cobra.Command {
	var (
		list bool
		dump bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file.yaml|builtin>...",
		Short: "Replay scenarios on a fresh tree",
		Long: `Replay YAML scenarios. Each scenario runs on its own empty tree and the whole
tree is validated after every single insert and delete.

Arguments are builtin scenario names or paths to YAML files. Use --list to see
the builtins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if list {
				for _, name := range scenario.Builtins() {
					fmt.Fprintln(out, name)
				}

				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("%w: no scenarios given", scenario.ErrInvalidScenario)
			}

			sess, err := openSession(cmd, global, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			failed := 0

			for _, ref := range args {
				sc, loadErr := scenario.Resolve(ref)
				if loadErr != nil {
					fmt.Fprintf(out, "%s %s: %v\n", status(false), ref, loadErr)

					failed++

					continue
				}

				tree := sess.newTree()

				report, runErr := scenario.Run(cmd.Context(), sc, tree, sess.logger)
				if runErr != nil {
					fmt.Fprintf(out, "%s %s: %v\n", status(false), sc.Name, runErr)

					failed++
				} else {
					fmt.Fprintf(out, "%s %s (%d steps, %d keys, height %d, %d fixups)\n",
						status(true), sc.Name, report.Steps, len(report.Final), report.Height, report.Stats.Total())
				}

				if dump {
					tree.Print(out)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, len(args))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list builtin scenarios")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the final tree of each scenario")

	return cmd
}
