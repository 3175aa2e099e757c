// Package qc reads a model description and fills a compile session from it:
// sources, skeleton overrides, body groups, skins, attachments, inverse
// kinematics, procedural bones, animations and sequences.
package qc

import (
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Box struct {
	Min mgl32.Vec3 `yaml:"min,flow"`
	Max mgl32.Vec3 `yaml:"max,flow"`
}

type Rename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Placement struct {
	Origin mgl32.Vec3 `yaml:"origin,flow"`
	// degrees
	Angles mgl32.Vec3 `yaml:"angles,flow"`
}

type DefineBone struct {
	Name      string `yaml:"name"`
	Parent    string `yaml:"parent"`
	Placement `yaml:",inline"`
	Realign   *Placement `yaml:"realign"`
}

type Hierarchy struct {
	Child     string `yaml:"child"`
	Parent    string `yaml:"parent"`
	SubParent string `yaml:"subparent"`
}

type ForceRealign struct {
	Bone   string     `yaml:"bone"`
	Angles mgl32.Vec3 `yaml:"angles,flow"`
}

type ScreenAlign struct {
	Bone string `yaml:"bone"`
	// sphere or cylinder, sphere when empty
	Mode string `yaml:"mode"`
}

type BodyModel struct {
	Name  string   `yaml:"name"`
	File  string   `yaml:"file"`
	Blank bool     `yaml:"blank"`
	Scale *float32 `yaml:"scale"`
}

type BodyGroup struct {
	Name   string      `yaml:"name"`
	Models []BodyModel `yaml:"models"`
}

type RenderMode struct {
	Texture string `yaml:"texture"`
	Mode    string `yaml:"mode"`
}

type Attachment struct {
	Name      string `yaml:"name"`
	Bone      string `yaml:"bone"`
	Placement `yaml:",inline"`
	Absolute  bool `yaml:"absolute"`
	Rigid     bool `yaml:"rigid"`
}

type Controller struct {
	Index int    `yaml:"index"`
	Bone  string `yaml:"bone"`
	// channel name, X Y Z XR YR ZR
	Type  string  `yaml:"type"`
	Start float32 `yaml:"start"`
	End   float32 `yaml:"end"`
	Loop  bool    `yaml:"loop"`
}

type HitGroup struct {
	Group int    `yaml:"group"`
	Bone  string `yaml:"bone"`
}

type Hitbox struct {
	Bone  string     `yaml:"bone"`
	Group int        `yaml:"group"`
	Min   mgl32.Vec3 `yaml:"min,flow"`
	Max   mgl32.Vec3 `yaml:"max,flow"`
}

type HitboxSet struct {
	Name     string   `yaml:"name"`
	Hitboxes []Hitbox `yaml:"hitboxes"`
}

type PoseParameter struct {
	Name  string   `yaml:"name"`
	Start float32  `yaml:"start"`
	End   float32  `yaml:"end"`
	Loop  *float32 `yaml:"loop"`
	// loop over the whole range
	Wrap bool `yaml:"wrap"`
}

type IKChain struct {
	Name   string     `yaml:"name"`
	Bone   string     `yaml:"bone"`
	Knee   mgl32.Vec3 `yaml:"knee,flow"`
	Height float32    `yaml:"height"`
	Radius float32    `yaml:"radius"`
	Floor  float32    `yaml:"floor"`
	Center mgl32.Vec3 `yaml:"center,flow"`
}

type IKLock struct {
	Chain        string  `yaml:"chain"`
	PosWeight    float32 `yaml:"posweight"`
	LocalQWeight float32 `yaml:"localqweight"`
}

type WeightlistBone struct {
	Name      string   `yaml:"name"`
	Weight    float32  `yaml:"weight"`
	PosWeight *float32 `yaml:"posweight"`
}

type Weightlist struct {
	Name  string           `yaml:"name"`
	Bones []WeightlistBone `yaml:"bones"`
}

type Transition struct {
	Entry string `yaml:"entry"`
	Exit  string `yaml:"exit"`
}

// Document is the whole model description
type Document struct {
	ModelName string     `yaml:"modelname"`
	Scale     *float32   `yaml:"scale"`
	Origin    mgl32.Vec3 `yaml:"origin,flow"`
	// yaw in degrees
	Rotate      *float32   `yaml:"rotate"`
	EyePosition mgl32.Vec3 `yaml:"eyeposition,flow"`
	BBox        *Box       `yaml:"bbox"`
	CBox        *Box       `yaml:"cbox"`
	Flags       int        `yaml:"flags"`
	Root        string     `yaml:"root"`
	TextureDirs []string   `yaml:"texturedirs"`

	Collapse          *bool `yaml:"collapse"`
	Realign           *bool `yaml:"realign"`
	BoneWeights       *bool `yaml:"boneweights"`
	StoreUV           *bool `yaml:"storeuv"`
	ClipToTextures    *bool `yaml:"cliptotextures"`
	SequenceGroupSize *int  `yaml:"sequencegroupsize"`

	RenameBone      []Rename       `yaml:"renamebone"`
	AlwaysCollapse  []string       `yaml:"alwayscollapse"`
	DefineBones     []DefineBone   `yaml:"definebones"`
	ForcedHierarchy []Hierarchy    `yaml:"forcedhierarchy"`
	ForceRealign    []ForceRealign `yaml:"forcerealign"`
	ScreenAlign     []ScreenAlign  `yaml:"screenalign"`
	LimitRotation   []string       `yaml:"limitrotation"`
	BoneMerge       []string       `yaml:"bonemerge"`

	BodyGroups    []BodyGroup  `yaml:"bodygroups"`
	TextureGroups [][][]string `yaml:"texturegroups"`
	TexRenderMode []RenderMode `yaml:"texrendermode"`

	Attachments     []Attachment    `yaml:"attachments"`
	Controllers     []Controller    `yaml:"controllers"`
	HitGroups       []HitGroup      `yaml:"hitgroups"`
	HitboxSets      []HitboxSet     `yaml:"hitboxsets"`
	PoseParameters  []PoseParameter `yaml:"poseparameters"`
	IKChains        []IKChain       `yaml:"ikchains"`
	IKAutoplayLocks []IKLock        `yaml:"ikautoplaylocks"`
	Weightlists     []Weightlist    `yaml:"weightlists"`
	Procedural      []Procedural    `yaml:"procedural"`

	Animations []Animation `yaml:"animations"`
	Sequences  []Sequence  `yaml:"sequences"`

	KeyValues string `yaml:"keyvalues"`
	// node pairs the transition graph must not link
	Transitions []Transition `yaml:"transitions"`
	// link nodes only through direct transitions
	NoMultiStage bool `yaml:"nomultistage"`
}

func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.Errorf("Empty model description")
		}
		return nil, errors.Wrapf(err, "Failed to decode model description")
	}
	return &doc, nil
}

func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return doc, nil
}
