package studio

import (
	"github.com/go-gl/mathgl/mgl32"
)

type IKLink struct {
	Bone int
	// preferred bend direction in the bone space of the link, zero when unknown
	KneeDir mgl32.Vec3
}

// IKChain is a hip/knee/foot linkage ending on Bone
type IKChain struct {
	Name string
	Bone string
	// root, mid, end
	Links []IKLink

	Axis   int
	Value  float32
	Height float32
	Radius float32
	Floor  float32
	// contact point in the space of the end bone
	Center mgl32.Vec3
	// declared knee direction in the space of the root link, zero to infer
	Knee mgl32.Vec3
}

func (c *IKChain) End() int {
	return c.Links[len(c.Links)-1].Bone
}

// IKError is one frame of a baked rule, end bone transform relative to the rule target
type IKError struct {
	Pos mgl32.Vec3
	Q   mgl32.Quat
}

// IKErrorStream is the compressed form of a rule error track
type IKErrorStream struct {
	Scale    [6]float32
	Channels [6]AnimChannel
}

type IKRule struct {
	// resolved chain index and its name as declared
	Chain     int
	ChainName string
	// position in the sequence rule list, equal across blends
	Index int
	Type  int
	// rules sharing a slot hand over to each other, -1 for the chain index
	Slot int

	Bone       int
	BoneName   string
	Attachment string

	// target at the contact frame
	Pos mgl32.Vec3
	Q   mgl32.Quat

	Height float32
	Floor  float32
	Radius float32

	// -1 marks a bound to infer
	Start, Peak, Tail, End int
	Contact                int

	UseSequence bool
	UseSource   bool
	Flags       int

	Errors []IKError
	Stream *IKErrorStream
}

func NewIKRule(chain string, kind int) *IKRule {
	return &IKRule{
		Chain:     -1,
		ChainName: chain,
		Type:      kind,
		Slot:      -1,
		Bone:      -1,
		Q:         mgl32.QuatIdent(),
		Start:     -1,
		Peak:      -1,
		Tail:      -1,
		End:       -1,
		Contact:   -1,
	}
}

// IKLock keeps a chain end where the previous layer put it
type IKLock struct {
	Name         string
	Chain        int
	PosWeight    float32
	LocalQWeight float32
}
