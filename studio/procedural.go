package studio

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ProceduralBone is a bone posed at runtime from other bones
type ProceduralBone interface {
	// BoneName is the driven bone
	BoneName() string
	// Kind is the STUDIO_PROC_* value stored in the bone info table
	Kind() int
}

// AxisInterpBone picks one of six poses by the direction the control's Axis points to
type AxisInterpBone struct {
	Bone    string
	Control string
	Axis    int
	Pos     [6]mgl32.Vec3
	Quat    [6]mgl32.Quat

	// resolved global bones
	BoneIndex    int
	ControlIndex int
}

type QuatInterpTrigger struct {
	Tolerance float32
	Trigger   mgl32.Quat
	Pos       mgl32.Vec3
	Quat      mgl32.Quat
}

// QuatInterpBone blends target poses by how close the control rotation is to each trigger
type QuatInterpBone struct {
	Bone          string
	Parent        string
	ControlParent string
	Control       string
	Size          float32
	BasePos       mgl32.Vec3
	// share of the control bone translation added to every target
	Percentage float32
	Triggers   []QuatInterpTrigger

	BoneIndex    int
	ControlIndex int
}

// AimAtBone keeps Bone turned to an attachment or another bone
type AimAtBone struct {
	Bone    string
	Parent  string
	Aim     string
	AimVec  mgl32.Vec3
	UpVec   mgl32.Vec3
	BasePos mgl32.Vec3

	BoneIndex   int
	ParentIndex int
	// exactly one of the two is set after linking
	AimAttach int
	AimBone   int
}

// JiggleBone is a damped spring, its parameters are passed through untouched
type JiggleBone struct {
	Bone  string
	Flags int

	Length         float32
	TipMass        float32
	YawStiffness   float32
	YawDamping     float32
	PitchStiffness float32
	PitchDamping   float32
	AlongStiffness float32
	AlongDamping   float32
	AngleLimit     float32

	MinYaw        float32
	MaxYaw        float32
	YawFriction   float32
	YawBounce     float32
	MinPitch      float32
	MaxPitch      float32
	PitchFriction float32
	PitchBounce   float32

	BaseMass            float32
	BaseStiffness       float32
	BaseDamping         float32
	BaseMinLeft         float32
	BaseMaxLeft         float32
	BaseLeftFriction    float32
	BaseMinUp           float32
	BaseMaxUp           float32
	BaseUpFriction      float32
	BaseMinForward      float32
	BaseMaxForward      float32
	BaseForwardFriction float32

	BoingImpactSpeed float32
	BoingImpactAngle float32
	BoingDampingRate float32
	BoingFrequency   float32
	BoingAmplitude   float32

	BoneIndex int
}

func (b *AxisInterpBone) BoneName() string { return b.Bone }
func (b *QuatInterpBone) BoneName() string { return b.Bone }
func (b *AimAtBone) BoneName() string      { return b.Bone }
func (b *JiggleBone) BoneName() string     { return b.Bone }

func (b *AxisInterpBone) Kind() int { return STUDIO_PROC_AXISINTERP }
func (b *QuatInterpBone) Kind() int { return STUDIO_PROC_QUATINTERP }
func (b *AimAtBone) Kind() int {
	if b.AimAttach != -1 {
		return STUDIO_PROC_AIMATATTACH
	}
	return STUDIO_PROC_AIMATBONE
}
func (b *JiggleBone) Kind() int { return STUDIO_PROC_JIGGLE }
