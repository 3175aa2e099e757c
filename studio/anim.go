package studio

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/utils"
)

// Movement is one piecewise key of the root motion
type Movement struct {
	EndFrame int
	Flags    int
	// speed at the start and at the end of the piece
	V0, V1 float32
	// direction of travel
	Vector mgl32.Vec3
	// accumulated displacement and yaw at EndFrame
	Pos mgl32.Vec3
	Rot mgl32.Vec3
}

// AnimChannel is one run length encoded channel.
// Header words are valid | total<<8, values are raw int16 bits.
type AnimChannel []uint16

type Animation struct {
	Name string
	// index in Session.Animations
	Index int

	Source *SourceModel

	Fps        float32
	Flags      int
	StartFrame int
	EndFrame   int
	NumFrames  int

	// applied to the root of every source frame
	Scale    float32
	Adjust   mgl32.Vec3
	Rotation mgl32.Vec3

	Commands []AnimCommand

	// per global bone blend weights, set from a weightlist
	Weight    []float32
	PosWeight []float32

	// [frame][global bone] local poses
	Sample [][]BonePose

	MotionType     int
	MotionRollback float32
	Movements      []*Movement
	LinearMovement mgl32.Vec3

	IKRules   []*IKRule
	NoAutoIK  bool
	FudgeLoop bool
	// frame the loop restarts from, 0 to keep source order
	LoopRestart int

	// [global bone][channel], nil channel is elided
	Channels [][6]AnimChannel

	Bounds utils.Bounds
}

func NewAnimation(name string) *Animation {
	return &Animation{
		Name:           name,
		Fps:            30,
		Scale:          1,
		EndFrame:       -1,
		MotionRollback: 0.3,
		Bounds:         utils.NewBounds(),
	}
}

func (a *Animation) IsLooping() bool { return a.Flags&STUDIO_LOOPING != 0 }
func (a *Animation) IsDelta() bool   { return a.Flags&STUDIO_DELTA != 0 }

// SourceFrames returns the first and the last frame of Source the animation covers
func (a *Animation) SourceFrames() (first, last int) {
	n := a.Source.NumFrames()
	first, last = a.StartFrame, a.EndFrame
	if first < 0 {
		first = 0
	}
	if last < 0 || last >= n {
		last = n - 1
	}
	if first > last {
		first = last
	}
	return first, last
}

// Frame returns the local pose of every bone on frame f, clamping out of range frames
func (a *Animation) Frame(f int) []BonePose {
	if f < 0 {
		f = 0
	}
	if f >= len(a.Sample) {
		f = len(a.Sample) - 1
	}
	return a.Sample[f]
}

type Event struct {
	Event   int
	Frame   int
	Options string
}

type Autolayer struct {
	Name string
	// resolved index into Session.Sequences
	Sequence int
	Flags    int
	// pose parameter index for STUDIO_AL_POSE layers
	Pose                   int
	Start, Peak, Tail, End float32
}

type Weightlist struct {
	Name string
	// explicit per bone weights by name, the rest inherit from the parent
	Bones []WeightlistBone
	// resolved per global bone, filled by the weight pass
	Weight    []float32
	PosWeight []float32
}

type WeightlistBone struct {
	Name      string
	Weight    float32
	PosWeight float32
}

type PoseParam struct {
	Name     string
	Flags    int
	Min, Max float32
	// wrap range, 0 when not looping
	Loop float32
}

type Sequence struct {
	Name string
	// index in Session.Sequences
	Index int

	Activity  int
	ActWeight int
	Flags     int
	FadeIn    float32
	FadeOut   float32

	// sequence group, 0 is the primary file
	Group int

	// blend grid, Anims is GroupSize[0]*GroupSize[1] long, row major on axis 0
	GroupSize  [2]int
	PoseParam  [2]int
	ParamStart [2]float32
	ParamEnd   [2]float32
	// grid coordinates along each axis
	Param [2][]float32
	// when set, grid values are derived from how this attachment moves
	ParamAttachment [2]int
	ParamControl    [2]int
	ParamAnim       *Animation
	ParamCompAnim   *Animation
	ParamCenter     *Animation

	Anims []*Animation

	Events     []*Event
	Autolayers []*Autolayer
	IKLocks    []*IKLock
	NumIKRules int

	// max of the weights of every blend
	Weight []float32
	// index into the deduplicated weight blocks of the output
	WeightlistIndex int

	EntryNode int
	ExitNode  int
	NodeFlags int
	// pose parameter driving the cycle of STUDIO_CYCLEPOSE sequences, -1 for none
	CyclePose int

	KeyValues string

	Bounds         utils.Bounds
	LinearMovement mgl32.Vec3
}

func NewSequence(name string) *Sequence {
	return &Sequence{
		Name:            name,
		GroupSize:       [2]int{1, 1},
		PoseParam:       [2]int{-1, -1},
		ParamAttachment: [2]int{-1, -1},
		CyclePose:       -1,
		FadeIn:          0.2,
		FadeOut:         0.2,
		Bounds:          utils.NewBounds(),
	}
}

func (s *Sequence) NumBlends() int {
	return len(s.Anims)
}

// Blend returns the animation at grid cell (i, j)
func (s *Sequence) Blend(i, j int) *Animation {
	return s.Anims[i+s.GroupSize[0]*j]
}

func (s *Sequence) IsLooping() bool { return s.Flags&STUDIO_LOOPING != 0 }

// SeqGroup is an output file holding animation data of some sequences
type SeqGroup struct {
	Label string
	// path stored in the primary file, empty for the primary itself
	Name string
}

// Transition is a node pair the transition graph must not link
type Transition struct {
	Entry string
	Exit  string
}
