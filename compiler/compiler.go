// Package compiler runs the stages that turn a filled session into the model
// file and its sequence group files.
package compiler

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/studiomdl/anim"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/ik"
	"github.com/mogaika/studiomdl/procbone"
	"github.com/mogaika/studiomdl/qc"
	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/skeleton"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/texture"
	"github.com/mogaika/studiomdl/tristrip"
	"github.com/mogaika/studiomdl/utils"
	"github.com/mogaika/studiomdl/writer"
)

type stage struct {
	name string
	run  func(s *studio.Session) error
}

func always(f func(s *studio.Session)) func(s *studio.Session) error {
	return func(s *studio.Session) error {
		f(s)
		return nil
	}
}

// every stage expects the ones above it to be done
var stages = []stage{
	{"skins", texture.PackSkins},
	{"bones", skeleton.RemapBones},
	{"procedural tags", procbone.Tag},
	{"ik chains", ik.LinkChains},
	{"ik locks", ik.LinkLocks},
	{"realign", skeleton.RealignBones},
	{"vertices", remap.RemapVertices},
	{"vertex arrays", remap.BuildVertexArrays},
	{"animations", remap.RemapAnimations},
	{"animation commands", anim.ProcessAnimations},
	{"events", always(anim.ClampEvents)},
	{"rotation limits", anim.LimitBoneRotations},
	{"knees", ik.FindKneeDirections},
	{"procedural bones", procbone.Remap},
	{"transitions", anim.MakeTransitions},
	{"autolayers", anim.FindAutolayers},
	{"controllers", skeleton.LinkBoneControllers},
	{"screen aligned bones", skeleton.TagScreenAligned},
	{"attachments", skeleton.LinkAttachments},
	{"procedural chains", always(procbone.MarkChains)},
	{"ik rules", ik.ProcessRules},
	{"ik errors", always(ik.CompressErrors)},
	{"pose parameters", anim.CalcPoseParameters},
	{"hitboxes", skeleton.SetupHitboxes},
	{"compression", anim.CompressAnimations},
	{"bounds", anim.CalcBoundingBoxes},
	{"sequence groups", always(anim.AssignSequenceGroups)},
	{"strips", always(tristrip.OptimizeMeshes)},
}

// Compile runs every stage on s and returns the files to write. Nothing is
// returned unless all stages succeed.
func Compile(s *studio.Session) ([]writer.Blob, error) {
	for _, st := range stages {
		s.Log.Printf("[compile] %s", st.name)
		if err := st.run(s); err != nil {
			return nil, errors.Wrapf(err, "%s: %s", s.Name, st.name)
		}
	}
	blobs, err := writer.Serialize(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", s.Name)
	}
	return blobs, nil
}

// Result is a compiled model together with the session it was built from
type Result struct {
	Session *studio.Session
	Blobs   []writer.Blob
}

// CompileFile loads the model description at path and compiles it
func CompileFile(path string, opts config.Options, log *utils.Logger) (*Result, error) {
	if err := opts.Apply(); err != nil {
		return nil, err
	}
	s, err := qc.Load(path, opts, log)
	if err != nil {
		return nil, err
	}
	blobs, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return &Result{Session: s, Blobs: blobs}, nil
}

// SaveAll writes every blob under dir
func SaveAll(dir string, blobs []writer.Blob) error {
	if dir == "" {
		dir = "."
	}
	for _, b := range blobs {
		path := filepath.Join(dir, b.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			return errors.Wrapf(err, "Failed to create directory for %q", path)
		}
		if err := os.WriteFile(path, b.Data, 0666); err != nil {
			return errors.Wrapf(err, "Failed to write %q", path)
		}
	}
	return nil
}

type FileReport struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
	// name based on the content, equal files get equal ids
	ID string `yaml:"id"`
}

type SequenceReport struct {
	Name   string `yaml:"name"`
	Frames int    `yaml:"frames"`
	Blends int    `yaml:"blends"`
	Group  int    `yaml:"group"`
	// channel bytes of the first blend
	Bytes int `yaml:"bytes"`
}

// Report summarizes a compile
type Report struct {
	Name      string           `yaml:"name"`
	Bones     []string         `yaml:"bones,flow"`
	Textures  []string         `yaml:"textures,omitempty,flow"`
	Sequences []SequenceReport `yaml:"sequences"`
	Files     []FileReport     `yaml:"files"`
}

func NewReport(r *Result) *Report {
	s := r.Session
	rep := &Report{Name: s.Name}
	for _, b := range s.Bones {
		rep.Bones = append(rep.Bones, b.Name)
	}
	for _, t := range s.Textures {
		rep.Textures = append(rep.Textures, t.Name)
	}
	for _, seq := range s.Sequences {
		sr := SequenceReport{
			Name:   seq.Name,
			Blends: seq.NumBlends(),
			Group:  seq.Group,
		}
		if len(seq.Anims) != 0 {
			sr.Frames = seq.Anims[0].NumFrames
			sr.Bytes = anim.ChannelsSize(seq.Anims[0])
		}
		rep.Sequences = append(rep.Sequences, sr)
	}
	for _, b := range r.Blobs {
		rep.Files = append(rep.Files, FileReport{
			Name: b.Name,
			Size: len(b.Data),
			ID:   uuid.NewSHA1(uuid.NameSpaceOID, b.Data).String(),
		})
	}
	return rep
}

func (rep *Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return errors.Wrapf(err, "Failed to encode report")
	}
	return enc.Close()
}

// Dump writes the whole session state
func (r *Result) Dump(w io.Writer) {
	utils.FDump(w, r.Session)
}
