package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/studiomdl/writer"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "inspect <file.mdl>",
		Short: "Print the tables of a compiled model",
		Long: `Read back a model or sequence group file and print its tables as YAML.

With --tree the byte ranges every table was read from are printed instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0], tree, cmd)
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, "print the file layout")

	return cmd
}

func runInspect(path string, tree bool, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to read %q", path)
	}
	info, err := writer.Inspect(data)
	if err != nil {
		return errors.Wrapf(err, "%s", path)
	}

	if tree {
		fmt.Fprint(cmd.OutOrStdout(), info.Layout.StringTree())
		return nil
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return errors.Wrapf(err, "Failed to encode %q", path)
	}
	return enc.Close()
}
