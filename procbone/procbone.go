// Package procbone resolves procedural bone declarations against the global
// bone table and re-expresses their parameters in the final bone spaces.
package procbone

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func procKindName(p studio.ProceduralBone) string {
	switch p.(type) {
	case *studio.AxisInterpBone:
		return "axisinterpbone"
	case *studio.QuatInterpBone:
		return "quatinterpbone"
	case *studio.AimAtBone:
		return "aimconstraint"
	case *studio.JiggleBone:
		return "jigglebone"
	}
	return "procedural bone"
}

func missingControl(bone, control string) error {
	return errors.Errorf("Missing control bone %q for procedural bone %q", control, bone)
}

// Tag resolves every declaration to global bones and flags the driven bone.
// Declarations whose bone did not survive collapsing are dropped with a warning.
func Tag(s *studio.Session) error {
	for _, b := range s.Bones {
		b.Procedural = -1
	}

	kept := s.Procedural[:0]
	for _, p := range s.Procedural {
		bone := s.FindBone(p.BoneName())
		if bone == -1 {
			s.Log.Warnf("%s %q unused", procKindName(p), p.BoneName())
			continue
		}

		switch p := p.(type) {
		case *studio.AxisInterpBone:
			p.BoneIndex = bone
			if p.ControlIndex = s.FindBone(p.Control); p.ControlIndex == -1 {
				return missingControl(p.Bone, p.Control)
			}
			s.Bones[bone].Flags |= studio.BONE_ALWAYS_PROCEDURAL
		case *studio.QuatInterpBone:
			p.BoneIndex = bone
			if p.ControlIndex = s.FindBone(p.Control); p.ControlIndex == -1 {
				return missingControl(p.Bone, p.Control)
			}
			s.Bones[bone].Flags |= studio.BONE_ALWAYS_PROCEDURAL
		case *studio.AimAtBone:
			p.BoneIndex = bone
			if p.ParentIndex = s.FindBone(p.Parent); p.ParentIndex == -1 {
				return errors.Errorf("Missing parent control bone %q for procedural bone %q", p.Parent, p.Bone)
			}
			p.AimBone = -1
			if p.AimAttach = s.FindAttachment(p.Aim); p.AimAttach == -1 {
				if p.AimBone = s.FindBone(p.Aim); p.AimBone == -1 {
					return errors.Errorf("Missing aim control attachment or bone %q for procedural bone %q", p.Aim, p.Bone)
				}
			}
			s.Bones[bone].Flags |= studio.BONE_ALWAYS_PROCEDURAL
		case *studio.JiggleBone:
			p.BoneIndex = bone
			s.Bones[bone].Flags |= studio.BONE_JIGGLE_PROCEDURAL
		default:
			return errors.Errorf("Unknown procedural bone type %T", p)
		}

		if prev := s.Bones[bone].Procedural; prev != -1 {
			return errors.Errorf("Bone %q is driven by more than one procedural definition", p.BoneName())
		}
		s.Bones[bone].Procedural = len(kept)
		kept = append(kept, p)
	}
	s.Procedural = kept
	return nil
}

// Remap moves quaternion interpolation triggers and targets into the realigned
// bone spaces. Bone indices must not have changed since Tag.
func Remap(s *studio.Session) error {
	for _, p := range s.Procedural {
		switch p := p.(type) {
		case *studio.QuatInterpBone:
			if err := remapQuatInterp(s, p); err != nil {
				return err
			}
		case *studio.AimAtBone:
			if s.FindBone(p.Parent) == -1 {
				return errors.Errorf("Aim constraint bone %q can't find parent bone %q", p.Bone, p.Parent)
			}
			if p.AimAttach == -1 && p.AimBone == -1 {
				return errors.Errorf("Aim constraint bone %q can't find aim %q", p.Bone, p.Aim)
			}
		}
	}
	return nil
}

func remapQuatInterp(s *studio.Session, p *studio.QuatInterpBone) error {
	origParent := s.FindBone(p.Parent)
	if origParent == -1 {
		return errors.Errorf("Procedural bone %q, can't find orig parent %q", p.Bone, p.Parent)
	}
	origControlParent := s.FindBone(p.ControlParent)
	if origControlParent == -1 {
		return errors.Errorf("Procedural bone %q, can't find control parent %q", p.Bone, p.ControlParent)
	}

	bone := s.Bones[p.BoneIndex]
	control := s.Bones[p.ControlIndex]
	if bone.Parent != origParent {
		return errors.Errorf("Procedural bone %q, parent was %q and is now %q", p.Bone, p.Parent, boneName(s, bone.Parent))
	}
	if control.Parent != origControlParent {
		return errors.Errorf("Procedural bone %q, control parent was %q and is now %q", p.Bone, p.ControlParent, boneName(s, control.Parent))
	}

	for k := range p.Triggers {
		t := &p.Triggers[k]

		// triggers are the control rotation relative to the control parent
		if parent := control.Parent; parent != -1 {
			pb := s.Bones[parent]
			srcParentToPose := pb.BoneToPose.Mul4(utils.RigidInverse(pb.SrcRealign))
			srcControlToPose := srcParentToPose.Mul4(utils.MatrixFromPosQuat(mgl32.Vec3{}, t.Trigger))
			destParentToPose := srcParentToPose.Mul4(pb.SrcRealign)
			destControlToPose := srcControlToPose.Mul4(control.SrcRealign)
			t.Trigger = utils.MatrixQuat(utils.RigidInverse(destParentToPose).Mul4(destControlToPose))
		}

		// targets are relative to the bone parent
		if parent := bone.Parent; parent != -1 {
			pb := s.Bones[parent]
			srcRelative := utils.MatrixFromPosQuat(t.Pos.Add(p.BasePos), t.Quat)
			srcParentToPose := pb.BoneToPose.Mul4(utils.RigidInverse(pb.SrcRealign))
			dest := pb.PoseToBone().Mul4(srcParentToPose.Mul4(srcRelative))

			t.Quat = utils.MatrixQuat(dest)
			t.Pos = utils.MatrixPosition(dest).Add(control.Pos.Mul(p.Percentage))
		}
	}
	return nil
}

func boneName(s *studio.Session, k int) string {
	if k < 0 {
		return "<root>"
	}
	return s.Bones[k].Name
}

func markChain(s *studio.Session, k int, flags int) {
	for ; k != -1; k = s.Bones[k].Parent {
		s.Bones[k].Flags |= flags
	}
}

// MarkChains propagates the usage of every procedural bone to its own
// ancestors and to the ancestors of the bones it reads from, so that the
// runtime sets them up before it
func MarkChains(s *studio.Session) {
	for _, p := range s.Procedural {
		var bone int
		var controls []int
		switch p := p.(type) {
		case *studio.AxisInterpBone:
			bone, controls = p.BoneIndex, []int{p.ControlIndex}
		case *studio.QuatInterpBone:
			bone, controls = p.BoneIndex, []int{p.ControlIndex}
		case *studio.AimAtBone:
			bone, controls = p.BoneIndex, []int{p.ParentIndex, p.AimBone}
		case *studio.JiggleBone:
			bone = p.BoneIndex
		}

		flags := s.Bones[bone].Flags & studio.BONE_USED_MASK
		for _, c := range controls {
			if c != -1 {
				markChain(s, c, flags)
			}
		}
		markChain(s, bone, flags)
	}
}
