package qc

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/source/gltfsource"
	"github.com/mogaika/studiomdl/source/smd"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/texture"
	"github.com/mogaika/studiomdl/utils"
)

type builder struct {
	doc *Document
	// directory relative paths of the description resolve against
	dir string
	s   *studio.Session

	raw    map[string]*studio.SourceModel
	scenes map[string]*gltfsource.Scene
	// scaled animation sources by file, take and scale
	anims map[string]*studio.SourceModel
}

// Load reads the description at path and builds a session from it
func Load(path string, opts config.Options, log *utils.Logger) (*studio.Session, error) {
	doc, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return Build(doc, filepath.Dir(path), opts, log)
}

// Build fills a new session from doc. Source files are looked up relative to dir.
func Build(doc *Document, dir string, opts config.Options, log *utils.Logger) (*studio.Session, error) {
	name := strings.TrimSuffix(filepath.Base(filepath.ToSlash(doc.ModelName)), filepath.Ext(doc.ModelName))
	if name == "" || name == "." {
		return nil, errors.Errorf("No modelname")
	}

	applyOptions(doc, &opts)
	b := &builder{
		doc:    doc,
		dir:    dir,
		s:      studio.NewSession(name, opts),
		raw:    make(map[string]*studio.SourceModel),
		scenes: make(map[string]*gltfsource.Scene),
		anims:  make(map[string]*studio.SourceModel),
	}
	b.s.Log = log

	for _, step := range []struct {
		what string
		f    func() error
	}{
		{"model", b.globals},
		{"skeleton", b.skeleton},
		{"body groups", b.bodyGroups},
		{"textures", b.textures},
		{"attachments", b.attachments},
		{"controllers", b.controllers},
		{"hitboxes", b.hitboxes},
		{"pose parameters", b.poseParameters},
		{"ik", b.ik},
		{"weightlists", b.weightlists},
		{"procedural bones", b.procedural},
		{"animations", b.animations},
		{"sequences", b.sequences},
		{"transitions", b.transitions},
	} {
		if err := step.f(); err != nil {
			return nil, errors.Wrapf(err, "%s: %s", name, step.what)
		}
	}
	return b.s, nil
}

func applyOptions(doc *Document, opts *config.Options) {
	if doc.Collapse != nil {
		opts.Collapse = *doc.Collapse
	}
	if doc.Realign != nil {
		opts.Realign = *doc.Realign
	}
	if doc.BoneWeights != nil {
		opts.BoneWeights = *doc.BoneWeights
	}
	if doc.StoreUV != nil {
		opts.StoreUV = *doc.StoreUV
	}
	if doc.ClipToTextures != nil {
		opts.ClipTexCoords = *doc.ClipToTextures
	}
	if doc.SequenceGroupSize != nil {
		opts.SequenceGroupSize = *doc.SequenceGroupSize
	}
}

// yawRotation is the root rotation of a model turned by yaw degrees.
// Sources face +Y and models face +X, so zero yaw is a quarter turn.
func yawRotation(yaw float32) mgl32.Vec3 {
	return mgl32.Vec3{0, 0, rad(yaw + 90)}
}

func (b *builder) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(b.dir, filepath.FromSlash(file))
}

func (b *builder) globals() error {
	s, doc := b.s, b.doc
	s.Flags = doc.Flags
	s.EyePosition = doc.EyePosition
	if doc.BBox != nil {
		s.BBox = utils.Bounds{Min: doc.BBox.Min, Max: doc.BBox.Max}
	}
	if doc.CBox != nil {
		s.CBox = utils.Bounds{Min: doc.CBox.Min, Max: doc.CBox.Max}
	}
	if doc.Scale != nil {
		if *doc.Scale <= 0 {
			return errors.Errorf("Bad scale %v", *doc.Scale)
		}
		s.DefaultScale = *doc.Scale
	}
	s.DefaultAdjust = doc.Origin
	s.DefaultRotation = yawRotation(0)
	if doc.Rotate != nil {
		s.DefaultRotation = yawRotation(*doc.Rotate)
	}
	s.RootBone = doc.Root
	s.KeyValues = doc.KeyValues

	s.TextureDirs = append(s.TextureDirs, b.dir)
	for _, d := range doc.TextureDirs {
		s.TextureDirs = append(s.TextureDirs, b.path(d))
	}
	return nil
}

func (b *builder) skeleton() error {
	s, doc := b.s, b.doc
	for _, r := range doc.RenameBone {
		s.Renames = append(s.Renames, &studio.BoneRename{From: r.From, To: r.To})
	}
	s.AlwaysCollapse = doc.AlwaysCollapse
	s.LimitRotation = doc.LimitRotation
	s.BoneMerge = doc.BoneMerge

	for _, d := range doc.DefineBones {
		if d.Name == "" {
			return errors.Errorf("definebone without name")
		}
		ib := &studio.ImportBone{
			Name:       d.Name,
			Parent:     d.Parent,
			RawLocal:   utils.MatrixFromPosRot(d.Origin, utils.DegreeToRadiansV3(d.Angles)),
			SrcRealign: mgl32.Ident4(),
		}
		if d.Realign != nil {
			ib.SrcRealign = utils.MatrixFromPosRot(d.Realign.Origin, utils.DegreeToRadiansV3(d.Realign.Angles))
			ib.PreAligned = true
		}
		s.ImportBones = append(s.ImportBones, ib)
	}
	for _, h := range doc.ForcedHierarchy {
		s.ForcedHierarchy = append(s.ForcedHierarchy, &studio.ForcedHierarchy{
			Parent:    h.Parent,
			Child:     h.Child,
			SubParent: h.SubParent,
		})
	}
	for _, r := range doc.ForceRealign {
		s.ForcedRealign = append(s.ForcedRealign, &studio.ForcedRealign{
			Name: r.Bone,
			Rot:  utils.DegreeToRadiansV3(r.Angles),
		})
	}
	for _, a := range doc.ScreenAlign {
		sa := &studio.ScreenAlignedBone{Name: a.Bone}
		switch strings.ToLower(a.Mode) {
		case "", "sphere":
			sa.Flags = studio.BONE_SCREEN_ALIGN_SPHERE
		case "cylinder":
			sa.Flags = studio.BONE_SCREEN_ALIGN_CYLINDER
		default:
			return errors.Errorf("Unknown screenalign mode %q for bone %q", a.Mode, a.Bone)
		}
		if a.Bone == "" {
			return errors.Errorf("screenalign without bone")
		}
		s.ScreenAligned = append(s.ScreenAligned, sa)
	}
	return nil
}

func isGLTF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".gltf" || ext == ".glb"
}

func (b *builder) scene(path string) (*gltfsource.Scene, error) {
	if sc, ok := b.scenes[path]; ok {
		return sc, nil
	}
	sc, err := gltfsource.Load(path)
	if err != nil {
		return nil, err
	}
	b.scenes[path] = sc
	return sc, nil
}

// loadMesh returns the reference source of file as parsed, shared between every user of the file
func (b *builder) loadMesh(file string) (*studio.SourceModel, error) {
	path := b.path(file)
	if isGLTF(path) {
		sc, err := b.scene(path)
		if err != nil {
			return nil, err
		}
		return sc.Reference, nil
	}
	if sm, ok := b.raw[path]; ok {
		return sm, nil
	}
	sm, err := smd.Load(path)
	if err != nil {
		return nil, err
	}
	b.raw[path] = sm
	return sm, nil
}

// loadTake returns the animation take of file, the first one when take is empty.
// Files without animations yield their reference pose.
func (b *builder) loadTake(file, take string) (*studio.SourceModel, error) {
	path := b.path(file)
	if !isGLTF(path) {
		return b.loadMesh(file)
	}
	sc, err := b.scene(path)
	if err != nil {
		return nil, err
	}
	if take != "" {
		if sm := sc.Take(take); sm != nil {
			return sm, nil
		}
		return nil, errors.Errorf("%q has no animation %q", file, take)
	}
	if len(sc.Animations) != 0 {
		return sc.Animations[0], nil
	}
	return sc.Reference, nil
}

func cloneSource(sm *studio.SourceModel) *studio.SourceModel {
	c := *sm
	c.Nodes = append([]studio.SourceNode(nil), sm.Nodes...)
	c.Frames = make([][]studio.BonePose, len(sm.Frames))
	for i, f := range sm.Frames {
		c.Frames[i] = append([]studio.BonePose(nil), f...)
	}
	c.Vertices = make([]studio.SourceVertex, len(sm.Vertices))
	for i, v := range sm.Vertices {
		v.Weights = append([]studio.BoneWeight(nil), v.Weights...)
		c.Vertices[i] = v
	}
	c.Meshes = make([]*studio.SourceMesh, len(sm.Meshes))
	for i, m := range sm.Meshes {
		mc := *m
		mc.Triangles = append([][3]studio.TriangleVert(nil), m.Triangles...)
		c.Meshes[i] = &mc
	}
	c.Materials = append([]string(nil), sm.Materials...)
	return &c
}

func scaleSource(sm *studio.SourceModel, scale float32) {
	if scale == 1 {
		return
	}
	for _, f := range sm.Frames {
		for k := range f {
			f[k].Pos = f[k].Pos.Mul(scale)
		}
	}
	for i := range sm.Vertices {
		sm.Vertices[i].Pos = sm.Vertices[i].Pos.Mul(scale)
	}
}

// placeSource moves the roots of every frame and the vertices of sm into model space
func placeSource(sm *studio.SourceModel, shift, rotate mgl32.Vec3) {
	for _, f := range sm.Frames {
		for k, node := range sm.Nodes {
			if node.Parent == -1 {
				f[k] = source.RootPose(f[k], shift, rotate)
			}
		}
	}
	m := utils.MatrixFromPosRot(mgl32.Vec3{}, rotate)
	for i := range sm.Vertices {
		v := &sm.Vertices[i]
		v.Pos = utils.RotateVector(m, v.Pos.Sub(shift))
		v.Normal = utils.RotateVector(m, v.Normal)
	}
}

func (b *builder) meshSource(file string, scale float32) (*studio.SourceModel, error) {
	raw, err := b.loadMesh(file)
	if err != nil {
		return nil, err
	}
	sm := cloneSource(raw)
	scaleSource(sm, scale)
	placeSource(sm, b.s.DefaultAdjust, b.s.DefaultRotation)
	return sm, nil
}

func (b *builder) animationSource(file, take string, scale float32) (*studio.SourceModel, error) {
	key := strings.Join([]string{b.path(file), strings.ToLower(take), strconv.FormatFloat(float64(scale), 'g', -1, 32)}, "|")
	if sm, ok := b.anims[key]; ok {
		return sm, nil
	}
	raw, err := b.loadTake(file, take)
	if err != nil {
		return nil, err
	}
	if raw.NumFrames() == 0 {
		return nil, errors.Errorf("%q has no frames", file)
	}
	sm := cloneSource(raw)
	scaleSource(sm, scale)
	b.anims[key] = sm
	return sm, nil
}

func (b *builder) bodyGroups() error {
	s := b.s
	for _, g := range b.doc.BodyGroups {
		if len(g.Models) == 0 {
			return errors.Errorf("Body group %q has no models", g.Name)
		}
		bp := &studio.BodyPart{Name: g.Name}
		for _, d := range g.Models {
			if d.Blank {
				bp.Models = append(bp.Models, &studio.Model{Name: "blank"})
				continue
			}
			if d.File == "" {
				return errors.Errorf("Body group %q model %q has no file", g.Name, d.Name)
			}
			scale := s.DefaultScale
			if d.Scale != nil {
				scale = *d.Scale
			}
			sm, err := b.meshSource(d.File, scale)
			if err != nil {
				return errors.Wrapf(err, "Body group %q", g.Name)
			}
			if err := s.AddModel(sm); err != nil {
				return err
			}
			if err := texture.LinkModel(s, sm); err != nil {
				return err
			}
			name := d.Name
			if name == "" {
				name = sm.Name
			}
			bp.Models = append(bp.Models, &studio.Model{Name: name, Source: sm})
		}
		if err := s.AddBodyPart(bp); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) textures() error {
	for i, rows := range b.doc.TextureGroups {
		if err := texture.AddGroup(b.s, rows); err != nil {
			return errors.Wrapf(err, "Texture group %d", i)
		}
	}
	for _, rm := range b.doc.TexRenderMode {
		if err := texture.SetRenderMode(b.s, rm.Texture, rm.Mode); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) attachments() error {
	s := b.s
	for _, d := range b.doc.Attachments {
		if s.FindAttachment(d.Name) != -1 {
			return errors.Errorf("Duplicate attachment %q", d.Name)
		}
		a := &studio.Attachment{
			Name:     d.Name,
			BoneName: d.Bone,
			Bone:     -1,
			Local:    utils.MatrixFromPosRot(d.Origin.Mul(s.DefaultScale), utils.DegreeToRadiansV3(d.Angles)),
		}
		if d.Absolute {
			a.Flags |= studio.ATTACHMENT_ABSOLUTE
		}
		if d.Rigid {
			a.Flags |= studio.ATTACHMENT_RIGID
		}
		if err := s.AddAttachment(a); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) controllers() error {
	for _, d := range b.doc.Controllers {
		kind, ok := studio.MotionFlag(strings.ToUpper(d.Type))
		if !ok || kind&(studio.STUDIO_X|studio.STUDIO_Y|studio.STUDIO_Z|studio.STUDIO_XR|studio.STUDIO_YR|studio.STUDIO_ZR) == 0 {
			return errors.Errorf("Bad controller type %q", d.Type)
		}
		if d.Loop {
			kind |= studio.STUDIO_RLOOP
		}
		c := &studio.BoneController{
			Name:  d.Bone,
			Bone:  -1,
			Type:  kind,
			Index: d.Index,
			Start: d.Start,
			End:   d.End,
		}
		if err := b.s.AddBoneController(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) hitboxes() error {
	s := b.s
	for _, d := range b.doc.HitGroups {
		s.HitGroups = append(s.HitGroups, &studio.HitGroup{Bone: d.Bone, Group: d.Group})
	}
	for _, d := range b.doc.HitboxSets {
		set := &studio.HitboxSet{Name: d.Name}
		for _, h := range d.Hitboxes {
			set.Hitboxes = append(set.Hitboxes, &studio.Hitbox{
				Name:  h.Bone,
				Bone:  -1,
				Group: h.Group,
				Min:   h.Min.Mul(s.DefaultScale),
				Max:   h.Max.Mul(s.DefaultScale),
			})
		}
		s.HitboxSets = append(s.HitboxSets, set)
	}
	return nil
}

func (b *builder) poseParameters() error {
	for _, d := range b.doc.PoseParameters {
		if b.s.FindPoseParam(d.Name) != -1 {
			return errors.Errorf("Duplicate pose parameter %q", d.Name)
		}
		p := &studio.PoseParam{Name: d.Name, Min: d.Start, Max: d.End}
		switch {
		case d.Wrap:
			p.Flags |= studio.STUDIO_LOOPING
			p.Loop = d.End - d.Start
		case d.Loop != nil:
			p.Flags |= studio.STUDIO_LOOPING
			p.Loop = *d.Loop
		}
		if err := b.s.AddPoseParam(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ik() error {
	s := b.s
	for _, d := range b.doc.IKChains {
		if s.FindIKChain(d.Name) != -1 {
			return errors.Errorf("Duplicate ik chain %q", d.Name)
		}
		c := &studio.IKChain{
			Name:   d.Name,
			Bone:   d.Bone,
			Knee:   d.Knee,
			Height: d.Height,
			Radius: d.Radius,
			Floor:  d.Floor,
			Center: d.Center,
		}
		if err := s.AddIKChain(c); err != nil {
			return err
		}
	}
	for _, d := range b.doc.IKAutoplayLocks {
		l := &studio.IKLock{Name: d.Chain, Chain: -1, PosWeight: d.PosWeight, LocalQWeight: d.LocalQWeight}
		if err := s.AddIKLock(l); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) weightlists() error {
	for _, d := range b.doc.Weightlists {
		if b.s.FindWeightlist(d.Name) != nil {
			return errors.Errorf("Duplicate weightlist %q", d.Name)
		}
		wl := &studio.Weightlist{Name: d.Name}
		for _, wb := range d.Bones {
			pos := wb.Weight
			if wb.PosWeight != nil {
				pos = *wb.PosWeight
			}
			wl.Bones = append(wl.Bones, studio.WeightlistBone{Name: wb.Name, Weight: wb.Weight, PosWeight: pos})
		}
		if err := b.s.AddWeightlist(wl); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) transitions() error {
	s := b.s
	s.MultiStageTransitions = !b.doc.NoMultiStage
	for _, t := range b.doc.Transitions {
		if t.Entry == "" || t.Exit == "" {
			return errors.Errorf("Transition needs both entry and exit")
		}
		s.Transitions = append(s.Transitions, &studio.Transition{Entry: t.Entry, Exit: t.Exit})
	}
	return nil
}
