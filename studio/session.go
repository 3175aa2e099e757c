package studio

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/utils"
)

// Session is everything one compilation reads and produces.
// Stages run in order and each one leaves the session ready for the next.
type Session struct {
	Name    string
	Options config.Options
	Log     *utils.Logger

	Flags       int
	EyePosition mgl32.Vec3
	BBox        utils.Bounds
	CBox        utils.Bounds

	// applied to every source root
	DefaultScale    float32
	DefaultAdjust   mgl32.Vec3
	DefaultRotation mgl32.Vec3
	// bone motion is extracted from, the first root when empty
	RootBone string

	Bones  []*GlobalBone
	Models []*SourceModel

	Animations []*Animation
	Sequences  []*Sequence
	SeqGroups  []*SeqGroup

	Weightlists []*Weightlist
	PoseParams  []*PoseParam

	IKChains        []*IKChain
	IKAutoplayLocks []*IKLock

	Attachments     []*Attachment
	BoneControllers []*BoneController
	HitGroups       []*HitGroup
	HitboxSets      []*HitboxSet

	Textures []*Texture
	// directories searched for skin images, in order
	TextureDirs []string
	// [family][skinref] texture index, skinrefs past NumSkinRef are only replacements
	SkinFamilies [][]int
	NumSkinRef   int
	BodyParts    []*BodyPart

	Procedural []ProceduralBone

	ImportBones     []*ImportBone
	ForcedHierarchy []*ForcedHierarchy
	ForcedRealign   []*ForcedRealign
	ScreenAligned   []*ScreenAlignedBone
	Renames         []*BoneRename
	AlwaysCollapse  []string
	LimitRotation   []string
	BoneMerge       []string

	KeyValues string

	// transition graph node names, node n is 1 based
	Nodes []string
	// [entry-1][exit-1] next node to go through, 0 when unreachable
	XNode [][]int
	// skip multi stage transitions when false
	MultiStageTransitions bool
	Transitions           []*Transition
}

func NewSession(name string, opts config.Options) *Session {
	return &Session{
		Name:                  name,
		Options:               opts,
		BBox:                  utils.NewBounds(),
		CBox:                  utils.NewBounds(),
		DefaultScale:          1,
		MultiStageTransitions: true,
	}
}

func capacityError(what string, limit int) error {
	return errors.Errorf("Too many %s, limit is %d", what, limit)
}

func (s *Session) AddBone(b *GlobalBone) (int, error) {
	if len(s.Bones) >= config.MAX_BONES {
		return -1, capacityError("bones", config.MAX_BONES)
	}
	s.Bones = append(s.Bones, b)
	return len(s.Bones) - 1, nil
}

func (s *Session) AddModel(m *SourceModel) error {
	if len(m.Nodes) > config.MAX_SRC_BONES {
		return capacityError("bones in source "+m.Name, config.MAX_SRC_BONES)
	}
	s.Models = append(s.Models, m)
	return nil
}

func (s *Session) AddAnimation(a *Animation) error {
	if len(s.Animations) >= config.MAX_ANIMATIONS {
		return capacityError("animations", config.MAX_ANIMATIONS)
	}
	a.Index = len(s.Animations)
	s.Animations = append(s.Animations, a)
	return nil
}

func (s *Session) AddSequence(seq *Sequence) error {
	if len(s.Sequences) >= config.MAX_SEQUENCES {
		return capacityError("sequences", config.MAX_SEQUENCES)
	}
	if len(seq.Events) > config.MAX_EVENTS {
		return capacityError("events in sequence "+seq.Name, config.MAX_EVENTS)
	}
	if len(seq.Autolayers) > config.MAX_AUTOLAYERS {
		return capacityError("autolayers in sequence "+seq.Name, config.MAX_AUTOLAYERS)
	}
	if len(seq.Anims) > config.MAX_BLENDS {
		return capacityError("blends in sequence "+seq.Name, config.MAX_BLENDS)
	}
	seq.Index = len(s.Sequences)
	s.Sequences = append(s.Sequences, seq)
	return nil
}

func (s *Session) AddIKChain(c *IKChain) error {
	if len(s.IKChains) >= config.MAX_IK_CHAINS {
		return capacityError("ik chains", config.MAX_IK_CHAINS)
	}
	s.IKChains = append(s.IKChains, c)
	return nil
}

func (s *Session) AddIKLock(l *IKLock) error {
	if len(s.IKAutoplayLocks) >= config.MAX_IK_LOCKS {
		return capacityError("ik locks", config.MAX_IK_LOCKS)
	}
	s.IKAutoplayLocks = append(s.IKAutoplayLocks, l)
	return nil
}

func (s *Session) AddWeightlist(w *Weightlist) error {
	if len(s.Weightlists) >= config.MAX_WEIGHTLISTS {
		return capacityError("weightlists", config.MAX_WEIGHTLISTS)
	}
	s.Weightlists = append(s.Weightlists, w)
	return nil
}

func (s *Session) AddPoseParam(p *PoseParam) error {
	if len(s.PoseParams) >= config.MAX_POSE_PARAMETERS {
		return capacityError("pose parameters", config.MAX_POSE_PARAMETERS)
	}
	s.PoseParams = append(s.PoseParams, p)
	return nil
}

func (s *Session) AddAttachment(a *Attachment) error {
	if len(s.Attachments) >= config.MAX_ATTACHMENTS {
		return capacityError("attachments", config.MAX_ATTACHMENTS)
	}
	s.Attachments = append(s.Attachments, a)
	return nil
}

func (s *Session) AddBoneController(c *BoneController) error {
	if len(s.BoneControllers) >= config.MAX_CONTROLLERS {
		return capacityError("bone controllers", config.MAX_CONTROLLERS)
	}
	s.BoneControllers = append(s.BoneControllers, c)
	return nil
}

func (s *Session) AddProcedural(p ProceduralBone) error {
	if len(s.Procedural) >= config.MAX_PROCEDURAL_BONES {
		return capacityError("procedural bones", config.MAX_PROCEDURAL_BONES)
	}
	s.Procedural = append(s.Procedural, p)
	return nil
}

// AddTexture returns the index of the texture named name, adding it when new
func (s *Session) AddTexture(name string) (int, error) {
	if i := s.FindTexture(name); i != -1 {
		return i, nil
	}
	if len(s.Textures) >= config.MAX_TEXTURES {
		return -1, capacityError("textures", config.MAX_TEXTURES)
	}
	t := &Texture{Name: name, Parent: -1}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "chrome") {
		t.Flags |= STUDIO_NF_FLATSHADE | STUDIO_NF_CHROME
	}
	if strings.Contains(lower, "bright") {
		t.Flags |= STUDIO_NF_FULLBRIGHT
	}
	s.Textures = append(s.Textures, t)
	return len(s.Textures) - 1, nil
}

func (s *Session) AddBodyPart(bp *BodyPart) error {
	if len(s.BodyParts) >= config.MAX_BODYPARTS {
		return capacityError("body parts", config.MAX_BODYPARTS)
	}
	models := 0
	for _, p := range s.BodyParts {
		models += len(p.Models)
	}
	if models+len(bp.Models) > config.MAX_MODELS {
		return capacityError("models", config.MAX_MODELS)
	}
	bp.Base = 1
	if n := len(s.BodyParts); n > 0 {
		prev := s.BodyParts[n-1]
		bp.Base = prev.Base * len(prev.Models)
	}
	s.BodyParts = append(s.BodyParts, bp)
	return nil
}

func (s *Session) FindBone(name string) int {
	for i, b := range s.Bones {
		if strings.EqualFold(b.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Session) FindAnimation(name string) *Animation {
	for _, a := range s.Animations {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func (s *Session) FindSequence(name string) int {
	for i, seq := range s.Sequences {
		if strings.EqualFold(seq.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Session) FindAttachment(name string) int {
	for i, a := range s.Attachments {
		if strings.EqualFold(a.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Session) FindIKChain(name string) int {
	for i, c := range s.IKChains {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Session) FindPoseParam(name string) int {
	for i, p := range s.PoseParams {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Session) FindWeightlist(name string) *Weightlist {
	for _, w := range s.Weightlists {
		if strings.EqualFold(w.Name, name) {
			return w
		}
	}
	return nil
}

func (s *Session) FindTexture(name string) int {
	for i, t := range s.Textures {
		if strings.EqualFold(t.Name, name) {
			return i
		}
	}
	return -1
}

// NodeIndex returns the 1 based transition node called name, adding it when new
func (s *Session) NodeIndex(name string) (int, error) {
	for i, n := range s.Nodes {
		if strings.EqualFold(n, name) {
			return i + 1, nil
		}
	}
	if len(s.Nodes) >= config.MAX_NODES {
		return 0, capacityError("transition nodes", config.MAX_NODES)
	}
	s.Nodes = append(s.Nodes, name)
	return len(s.Nodes), nil
}

// Sources returns every mesh source followed by the animation sources not already listed
func (s *Session) Sources() []*SourceModel {
	seen := make(map[*SourceModel]bool)
	var r []*SourceModel
	for _, sm := range s.Models {
		if !seen[sm] {
			seen[sm] = true
			r = append(r, sm)
		}
	}
	for _, a := range s.Animations {
		if a.Source != nil && !seen[a.Source] {
			seen[a.Source] = true
			r = append(r, a.Source)
		}
	}
	return r
}

// RootIndex returns the bone motion extraction works on
func (s *Session) RootIndex() int {
	if s.RootBone != "" {
		if k := s.FindBone(s.RootBone); k != -1 {
			return k
		}
	}
	return 0
}

// HasBoneWeights reports whether vertices store blended weights
func (s *Session) HasBoneWeights() bool {
	return s.Options.BoneWeights
}

// ProceduralFor returns the procedural definition driving bone, or nil
func (s *Session) ProceduralFor(bone int) ProceduralBone {
	if bone < 0 || bone >= len(s.Bones) || s.Bones[bone].Procedural < 0 {
		return nil
	}
	return s.Procedural[s.Bones[bone].Procedural]
}
