package studio

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AnimCommand is one post processing step of an animation, applied in declaration order
type AnimCommand interface {
	animCommand()
}

// CmdWeightList selects the blend weights of the animation
type CmdWeightList struct {
	Name string
}

// CmdSubtract turns the animation into a delta against frame Frame of Ref
type CmdSubtract struct {
	Ref   string
	Frame int
	// STUDIO_POST for post multiplied deltas
	Flags int
}

// CmdLinearDelta turns the animation into a delta that ramps from its first frame to its last
type CmdLinearDelta struct {
	// STUDIO_AL_SPLINE eases the ramp, STUDIO_POST as in CmdSubtract
	Flags int
}

// CmdFixupLoop blends the end of a looping animation into its start over a frame window
type CmdFixupLoop struct {
	Start, End int
}

// CmdAngle rotates the root around Z by Angle degrees
type CmdAngle struct {
	Angle float32
}

// CmdMotion extracts root motion up to EndFrame into a movement key
type CmdMotion struct {
	MotionType int
	EndFrame   int
}

// CmdDerivative replaces every frame by its difference to the previous one
type CmdDerivative struct {
	Scale float32
}

// CmdNoAnimation replaces the frames by a single zero delta frame
type CmdNoAnimation struct{}

// CmdReencode keeps every FrameSkip-th frame
type CmdReencode struct {
	FrameSkip int
}

// CmdNumFrames pads the animation with copies of its last frame
type CmdNumFrames struct {
	Frames int
}

// CmdCounterRotate cancels the rotation of the root on Bone, against Target or the reference pose
type CmdCounterRotate struct {
	Bone   string
	Target *mgl32.Vec3
}

// CmdIKFixup bakes the chain of Rule onto its analytic target
type CmdIKFixup struct {
	Rule *IKRule
}

// CmdIKRule attaches Rule to the animation
type CmdIKRule struct {
	Rule *IKRule
}

func (*CmdWeightList) animCommand()    {}
func (*CmdSubtract) animCommand()      {}
func (*CmdLinearDelta) animCommand()   {}
func (*CmdFixupLoop) animCommand()     {}
func (*CmdAngle) animCommand()         {}
func (*CmdMotion) animCommand()        {}
func (*CmdDerivative) animCommand()    {}
func (*CmdNoAnimation) animCommand()   {}
func (*CmdReencode) animCommand()      {}
func (*CmdNumFrames) animCommand()     {}
func (*CmdCounterRotate) animCommand() {}
func (*CmdIKFixup) animCommand()       {}
func (*CmdIKRule) animCommand()        {}
