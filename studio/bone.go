package studio

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/utils"
)

// BonePose is a local transform, rotation is euler radians (roll, pitch, yaw)
type BonePose struct {
	Pos mgl32.Vec3
	Rot mgl32.Vec3
}

func (p BonePose) Matrix() mgl32.Mat4 {
	return utils.MatrixFromPosRot(p.Pos, p.Rot)
}

func (p BonePose) Quat() mgl32.Quat {
	return utils.EulerToQuat(p.Rot)
}

func PoseFromMatrix(m mgl32.Mat4) BonePose {
	pos, rot := utils.MatrixToPosRot(m)
	return BonePose{Pos: pos, Rot: rot}
}

type GlobalBone struct {
	Name   string
	Parent int
	Flags  int

	// reference pose relative to parent
	Pos mgl32.Vec3
	Rot mgl32.Vec3

	// compression scales, filled by the animation compressor
	PosScale mgl32.Vec3
	RotScale mgl32.Vec3

	// reference pose relative to the model
	BoneToPose mgl32.Mat4
	// rotation applied on top of the source frame by realignment
	SrcRealign mgl32.Mat4
	// transform as it came from the first source, before realignment
	RawLocal mgl32.Mat4

	QAlignment mgl32.Quat

	// index into Session.BoneControllers per channel, -1 when unused
	Controllers [6]int
	HitGroup    int
	Bounds      utils.Bounds

	// index into Session.Procedural, -1 when not procedural
	Procedural int

	PreDefined   bool
	PreAligned   bool
	DontCollapse bool
}

func NewGlobalBone(name string, parent int) *GlobalBone {
	b := &GlobalBone{
		Name:       name,
		Parent:     parent,
		BoneToPose: mgl32.Ident4(),
		SrcRealign: mgl32.Ident4(),
		RawLocal:   mgl32.Ident4(),
		QAlignment: mgl32.QuatIdent(),
		HitGroup:   -9999,
		Bounds:     utils.NewBounds(),
		Procedural: -1,
	}
	for i := range b.Controllers {
		b.Controllers[i] = -1
	}
	return b
}

func (b *GlobalBone) Pose() BonePose {
	return BonePose{Pos: b.Pos, Rot: b.Rot}
}

func (b *GlobalBone) Local() mgl32.Mat4 {
	return utils.MatrixFromPosRot(b.Pos, b.Rot)
}

func (b *GlobalBone) PoseToBone() mgl32.Mat4 {
	return utils.RigidInverse(b.BoneToPose)
}

// ImportBone is a bone defined ahead of the sources, its transform is trusted as is
type ImportBone struct {
	Name       string
	Parent     string
	RawLocal   mgl32.Mat4
	SrcRealign mgl32.Mat4
	PreAligned bool
}

type BoneRename struct {
	From string
	To   string
}

type ForcedHierarchy struct {
	Parent string
	Child  string
	// optional bone inserted between Parent and Child
	SubParent string
}

type ForcedRealign struct {
	Name string
	Rot  mgl32.Vec3
}

// ScreenAlignedBone turns to face the viewer at runtime
type ScreenAlignedBone struct {
	Name string
	// BONE_SCREEN_ALIGN_SPHERE or BONE_SCREEN_ALIGN_CYLINDER
	Flags int
}
