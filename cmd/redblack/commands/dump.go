package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
)

func newDumpCommand(global *globalFlags) *cobra.Command {
	var (
		ascii   bool
		deletes []int32
	)

	cmd := &cobra.Command{
		Use:   "dump [flags] [--] <key>...",
		Short: "Build a tree from keys and print it",
		Long: `Insert the keys in order, delete the --delete keys, validate the tree and print it.

The default output lists nodes in order as "key color parent". With --ascii the
tree is drawn sideways, right subtree on top, red nodes marked with "*".

Flags go before the keys; everything after the first key is read as a key, so
negative keys need no escaping there. Put "--" before a leading negative key:

  redblack dump 10 -10 40 -20 -5 20 60 50 80
  redblack dump --ascii -- -20 -10 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd, global, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			tree := sess.newTree()

			err = insertKeys(tree, keys)
			if err != nil {
				return err
			}

			for _, key := range deletes {
				if !tree.Delete(key) {
					sess.logger.Debug("delete of a missing key", "key", key)
				}
			}

			err = tree.Validate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if ascii {
				height := tree.Print(out)
				sess.logger.Debug("tree printed", "nodes", tree.Len(), "height", height)

				return nil
			}

			err = tree.Dump(out)
			if err != nil {
				return fmt.Errorf("dump tree: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&ascii, "ascii", false, "draw the tree shape")
	cmd.Flags().Int32SliceVar(&deletes, "delete", nil, "keys to delete after inserting")
	cmd.Flags().SetInterspersed(false)

	return cmd
}
