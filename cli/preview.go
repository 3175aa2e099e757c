package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/qc"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/texture"
	"github.com/mogaika/studiomdl/writer"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "preview <file.mdl|model.yaml>",
		Short: "Write the packed skins as WebP images",
		Long: `Write every skin of a compiled model as a WebP image.

A model description is loaded and only its skins are packed, without
compiling the rest of the model.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(rootOpts, args[0], output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")

	return cmd
}

func compiledSkins(path string) ([]*studio.Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	info, err := writer.Inspect(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	var skins []*studio.Texture
	for i, ti := range info.Textures {
		skin, err := info.Skin(data, i)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
		skins = append(skins, &studio.Texture{
			Name:   ti.Name,
			Flags:  ti.Flags,
			Width:  ti.Width,
			Height: ti.Height,
			Data:   skin,
		})
	}
	return skins, nil
}

func describedSkins(path string, verbose bool, cmd *cobra.Command) ([]*studio.Texture, error) {
	s, err := qc.Load(path, *config.DefaultOptions(), logger(verbose, cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	if err := texture.PackSkins(s); err != nil {
		return nil, err
	}
	return s.Textures, nil
}

func previewName(texName string) string {
	base := filepath.Base(strings.ReplaceAll(texName, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".webp"
}

func runPreview(rootOpts *RootOptions, path, output string, cmd *cobra.Command) error {
	var skins []*studio.Texture
	var err error
	if strings.EqualFold(filepath.Ext(path), ".mdl") {
		skins, err = compiledSkins(path)
	} else {
		skins, err = describedSkins(path, rootOpts.Verbose, cmd)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(output, 0777); err != nil {
		return errors.Wrapf(err, "Failed to create %q", output)
	}
	for _, t := range skins {
		img, err := texture.Preview(t)
		if err != nil {
			return err
		}
		out := filepath.Join(output, previewName(t.Name))
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrapf(err, "Failed to create %q", out)
		}
		if err := texture.WritePreview(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "Failed to write %q", out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d\n", out, t.Width, t.Height)
	}
	return nil
}
