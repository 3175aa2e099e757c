// Package anim post processes remapped animations: processing commands,
// root motion, weights, rotation limits, compression, bounds, transition
// graph and sequence groups.
package anim

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func runCommand(s *studio.Session, a *studio.Animation, cmd studio.AnimCommand, startFrame *int) error {
	switch c := cmd.(type) {
	case *studio.CmdWeightList:
		wl := s.FindWeightlist(c.Name)
		if wl == nil {
			return errors.Errorf("Unknown weightlist %q", c.Name)
		}
		setWeights(a, wl)
	case *studio.CmdSubtract:
		ref := s.FindAnimation(c.Ref)
		if ref == nil {
			return errors.Errorf("Unknown subtract animation %q", c.Ref)
		}
		return subtract(a, ref, c.Frame, c.Flags)
	case *studio.CmdLinearDelta:
		linearDelta(s, a, c.Flags)
	case *studio.CmdFixupLoop:
		fixupLoop(s, a, c.Start, c.End)
	case *studio.CmdAngle:
		makeAngle(s, a, c.Angle)
	case *studio.CmdMotion:
		if err := extractLinearMotion(s, a, c.MotionType, *startFrame, c.EndFrame, c.EndFrame, a, *startFrame); err != nil {
			return err
		}
		*startFrame = c.EndFrame
	case *studio.CmdDerivative:
		createDerivative(a, c.Scale)
	case *studio.CmdNoAnimation:
		clearAnimation(a)
	case *studio.CmdReencode:
		return reencode(a, c.FrameSkip)
	case *studio.CmdNumFrames:
		forceNumFrames(a, c.Frames)
	case *studio.CmdCounterRotate:
		k := s.FindBone(c.Bone)
		if k == -1 {
			return errors.Errorf("Unable to find bone %q to counter rotate", c.Bone)
		}
		var target mgl32.Vec3
		if c.Target != nil {
			target = *c.Target
		} else {
			rootxform := utils.MatrixFromPosRot(mgl32.Vec3{}, a.Rotation)
			_, target = utils.MatrixToPosRot(rootxform.Mul4(s.Bones[k].BoneToPose))
		}
		return counterRotate(s, a, k, target)
	case *studio.CmdIKFixup, *studio.CmdIKRule:
		// baked by the ik pass
	default:
		return errors.Errorf("Unknown animation command %T", cmd)
	}
	return nil
}

// ProcessAnimations runs the processing commands of every animation, extracts
// its root motion and makes looping animations loop
func ProcessAnimations(s *studio.Session) error {
	if err := BuildWeightlists(s); err != nil {
		return err
	}

	for _, a := range s.Animations {
		if len(a.Sample) == 0 {
			return errors.Errorf("Animation %q has no frames", a.Name)
		}
		extractUnusedMotion(s, a)
		setWeights(a, s.Weightlists[0])

		if a.FudgeLoop {
			fixupMissingFrame(a)
		}

		startFrame := 0
		for _, cmd := range a.Commands {
			if err := runCommand(s, a, cmd, &startFrame); err != nil {
				return errors.Wrapf(err, "Animation %q", a.Name)
			}
		}

		if a.MotionType&studio.STUDIO_TYPES != 0 {
			n := len(a.Sample)
			lastFrame := n - 1
			if !a.IsLooping() {
				// roll back a little to keep the end from popping
				frames := int(a.Fps * a.MotionRollback)
				lastFrame = startFrame + 1
				if lastFrame > n-1 {
					lastFrame = n - 1
				}
				if lastFrame < n-frames-1 {
					lastFrame = n - frames - 1
				}
			}
			if err := extractLinearMotion(s, a, a.MotionType, startFrame, lastFrame, n-1, a, startFrame); err != nil {
				return err
			}
		}

		if err := realignLooping(a); err != nil {
			return err
		}
		ForceLoop(a)
		a.NumFrames = len(a.Sample)
	}

	MergeSequenceWeights(s)
	return nil
}

// ClampEvents keeps sequence events inside the frames of the first blend
// and copies the linear movement of the first blend to the sequence
func ClampEvents(s *studio.Session) {
	for _, seq := range s.Sequences {
		if len(seq.Anims) == 0 {
			continue
		}
		a := seq.Anims[0]
		last := a.NumFrames - 1
		for _, ev := range seq.Events {
			if ev.Frame < 0 {
				s.Log.Warnf("sequence %s has event (%d) before first frame", seq.Name, ev.Frame)
				ev.Frame = 0
			}
			if ev.Frame > last {
				s.Log.Warnf("sequence %s has event (%d) after last frame (%d)", seq.Name, ev.Frame, last)
				ev.Frame = last
			}
		}
		seq.LinearMovement = a.LinearMovement
	}
}

// FindAutolayers resolves autolayer sequence names
func FindAutolayers(s *studio.Session) error {
	for _, seq := range s.Sequences {
		for _, al := range seq.Autolayers {
			if al.Sequence = s.FindSequence(al.Name); al.Sequence == -1 {
				return errors.Errorf("Sequence %q cannot find autolayer sequence %q", seq.Name, al.Name)
			}
		}
	}
	return nil
}
