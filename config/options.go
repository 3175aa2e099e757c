package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Options struct {
	// rotate each bone so its local X axis points at its only child
	Realign bool `yaml:"realign"`
	// remove bones that carry no weight, animation or procedural use
	Collapse bool `yaml:"collapse"`
	// also remove bones whose only reason to stay is a hitbox or attachment
	AggressiveCollapse bool `yaml:"aggressive_collapse"`
	// take the transform of predefined bones from the sources instead
	OverrideBones bool `yaml:"override_bones"`
	// store up to MAX_BONE_WEIGHTS influences per vertex
	BoneWeights bool `yaml:"bone_weights"`
	// store half float UVs instead of texel S/T
	StoreUV bool `yaml:"store_uv"`
	// map texture coordinates onto the whole skin instead of packing the used texels
	ClipTexCoords bool `yaml:"clip_texcoords"`
	// coordinates outside 0..1 switch to clipping instead of being wrapped into range
	AllowTiling bool `yaml:"allow_tiling"`
	// alpha below which masked skin texels become transparent
	AlphaThreshold float32 `yaml:"alpha_threshold"`
	// animation bytes allowed in the primary file before sequences move to group files, 0 disables
	SequenceGroupSize int `yaml:"sequence_group_size"`
	OutputDir         string `yaml:"output_dir"`
	Encoding          string `yaml:"encoding"`
	// keep triangles in input order, one strip per triangle
	NoStrips bool `yaml:"no_strips"`
	Verbose  bool `yaml:"verbose"`
}

func DefaultOptions() *Options {
	return &Options{
		Realign:        true,
		Collapse:       true,
		Encoding:       "Windows 1252",
		AlphaThreshold: 0.5,
	}
}

// DecodeOptions overlays the YAML document from r on top of opts.
func DecodeOptions(r io.Reader, opts *Options) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrapf(err, "Failed to decode options")
	}
	return nil
}

func LoadOptions(path string) (*Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open options file %q", path)
	}
	defer f.Close()

	if err := DecodeOptions(f, opts); err != nil {
		return nil, errors.Wrapf(err, "Options file %q", path)
	}
	return opts, nil
}

// Apply makes the options global state effective.
func (o *Options) Apply() error {
	if o.Encoding != "" {
		return SetEncoding(o.Encoding)
	}
	return nil
}
