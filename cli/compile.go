package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mogaika/studiomdl/compiler"
	"github.com/mogaika/studiomdl/config"
)

type compileOptions struct {
	options string
	output  string
	report  string
	dump    string

	collapse    bool
	realign     bool
	boneWeights bool
	storeUV     bool
	groupSize   int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <model.yaml>",
		Short: "Compile a model description",
		Long: `Compile a model description into a model file.

Files are written only when every stage succeeds. Sequence group files go
next to the model file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.options, "options", "c", "", "options file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory, defaults to the options file setting or the description directory")
	cmd.Flags().StringVar(&opts.report, "report", "", "write a YAML report to this file, - for stdout")
	cmd.Flags().StringVar(&opts.dump, "dump", "", "dump the final compile state to this file")
	cmd.Flags().BoolVar(&opts.collapse, "collapse", true, "remove bones without weights, animation or procedural use")
	cmd.Flags().BoolVar(&opts.realign, "realign", true, "point bones at their only child")
	cmd.Flags().BoolVar(&opts.boneWeights, "boneweights", false, "store blended vertex weights")
	cmd.Flags().BoolVar(&opts.storeUV, "storeuv", false, "store half float UVs instead of texel coordinates")
	cmd.Flags().IntVar(&opts.groupSize, "groupsize", 0, "animation bytes kept in the model file before sequence group files are split off")

	return cmd
}

func runCompile(rootOpts *RootOptions, opts *compileOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.LoadOptions(opts.options)
	if err != nil {
		return err
	}
	overrideOptions(cfg, opts, cmd)
	cfg.Verbose = cfg.Verbose || rootOpts.Verbose
	log := logger(cfg.Verbose, cmd.ErrOrStderr())

	res, err := compiler.CompileFile(path, *cfg, log)
	if err != nil {
		return err
	}

	outDir := opts.output
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := compiler.SaveAll(outDir, res.Blobs); err != nil {
		return err
	}
	for _, b := range res.Blobs {
		log.Printf("[compile] wrote %s (%d bytes)", filepath.Join(outDir, b.Name), len(b.Data))
	}

	if opts.report != "" {
		if err := writeReport(opts.report, compiler.NewReport(res), cmd); err != nil {
			return err
		}
	}
	if opts.dump != "" {
		f, err := os.Create(opts.dump)
		if err != nil {
			return errors.Wrapf(err, "Failed to create dump file")
		}
		res.Dump(f)
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "Failed to write dump file")
		}
	}

	if opts.report != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "compiled %s: %d file(s) in %s\n", res.Session.Name, len(res.Blobs), outDir)
	}
	return nil
}

// overrideOptions applies the flags given on the command line
func overrideOptions(cfg *config.Options, opts *compileOptions, cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("collapse") {
		cfg.Collapse = opts.collapse
	}
	if f.Changed("realign") {
		cfg.Realign = opts.realign
	}
	if f.Changed("boneweights") {
		cfg.BoneWeights = opts.boneWeights
	}
	if f.Changed("storeuv") {
		cfg.StoreUV = opts.storeUV
	}
	if f.Changed("groupsize") {
		cfg.SequenceGroupSize = opts.groupSize
	}
}

func writeReport(path string, rep *compiler.Report, cmd *cobra.Command) error {
	if path == "-" {
		return rep.Write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create report file")
	}
	if err := rep.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
