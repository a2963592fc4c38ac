package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const snapshotFilePerm = 0o644

func newSnapshotCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save or load an LZ4-compressed tree snapshot",
	}

	cmd.AddCommand(newSnapshotSaveCommand(global), newSnapshotLoadCommand(global))

	return cmd
}

func newSnapshotSaveCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [flags] <file> <key>...",
		Short: "Build a tree from keys and write its snapshot",
		Long: `Insert the keys in order and write the tree to file.

Flags go before the file name; every argument after it is read as a key, so
negative keys need no escaping:

  redblack snapshot save tree.rbt 10 -10 40 -20 -5 20 60 50 80`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args[1:])
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

			size, err := saveSnapshot(args[0], tree)
			if err != nil {
				return err
			}

			sess.logger.Info("snapshot saved", "path", args[0], "nodes", tree.Len(), "bytes", size)
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s nodes to %s (%s)\n",
				humanize.Comma(int64(tree.Len())), args[0], humanize.Bytes(uint64(size))) //nolint:gosec // file sizes are non-negative.

			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)

	return cmd
}

func newSnapshotLoadCommand(global *globalFlags) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Read and validate a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, global, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			tree, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %s nodes, height %d, black height %d\n",
				status(true), args[0], humanize.Comma(int64(tree.Len())), tree.Height(), tree.BlackHeight())

			if dump {
				err = tree.Dump(out)
				if err != nil {
					return fmt.Errorf("dump tree: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "print the loaded tree")

	return cmd
}

// saveSnapshot writes the tree to path and returns the file size.
func saveSnapshot(path string, tree *rbtree.RBTree) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, snapshotFilePerm)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}

	err = tree.WriteSnapshot(file)
	if err != nil {
		file.Close()

		return 0, fmt.Errorf("write snapshot: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()

		return 0, fmt.Errorf("stat snapshot: %w", err)
	}

	err = file.Close()
	if err != nil {
		return 0, fmt.Errorf("close snapshot: %w", err)
	}

	return info.Size(), nil
}

// loadSnapshot reads and validates the snapshot at path.
func loadSnapshot(path string) (*rbtree.RBTree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	tree, err := rbtree.ReadSnapshot(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return tree, nil
}
