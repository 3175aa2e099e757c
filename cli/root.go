// Package cli holds the studiomdl commands.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mogaika/studiomdl/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the studiomdl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "studiomdl",
		Short: "Skeletal model compiler",
		Long: `Compiles a model description with its mesh and animation sources
into a studio model file and its sequence group files.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every compile stage")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))

	return cmd
}

// logger writes everything when verbose, warnings only otherwise
func logger(verbose bool, w io.Writer) *utils.Logger {
	if verbose {
		return utils.NewLogger(w)
	}
	return utils.NewLogger(utils.NewWarningsWriter(w))
}
