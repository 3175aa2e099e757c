package anim

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func poseParamValue(control int, m mgl32.Mat4) float32 {
	pos, rot := utils.MatrixToPosRot(m)
	switch control {
	case studio.STUDIO_X:
		return pos[0]
	case studio.STUDIO_Y:
		return pos[1]
	case studio.STUDIO_Z:
		return pos[2]
	case studio.STUDIO_XR:
		return mgl32.RadToDeg(rot[0])
	case studio.STUDIO_YR:
		return mgl32.RadToDeg(rot[1])
	case studio.STUDIO_ZR:
		return mgl32.RadToDeg(rot[2])
	}
	return 0
}

func attachmentToWorld(s *studio.Session, a, base *studio.Animation, att *studio.Attachment) (mgl32.Mat4, error) {
	boneToWorld, err := remap.BoneTransforms(s, a, base, 0)
	if err != nil {
		return mgl32.Ident4(), err
	}
	return boneToWorld[att.Bone].Mul4(att.Local), nil
}

// centerCell returns the grid cell of the center animation, or the middle of
// the other axis when there is none
func centerCell(seq *studio.Sequence, axis int) [2]int {
	var m [2]int
	if seq.ParamCenter != nil {
		for i0 := 0; i0 < seq.GroupSize[0]; i0++ {
			for i1 := 0; i1 < seq.GroupSize[1]; i1++ {
				if seq.Blend(i0, i1) == seq.ParamCenter {
					return [2]int{i0, i1}
				}
			}
		}
	}
	m[1-axis] = seq.GroupSize[1-axis] / 2
	return m
}

func measureAxis(s *studio.Session, seq *studio.Sequence, axis int) error {
	n := seq.ParamAttachment[axis]
	if n < 0 || n >= len(s.Attachments) {
		return errors.Errorf("Unknown blend attachment %d", n)
	}
	att := s.Attachments[n]

	if seq.ParamAnim == nil {
		if len(s.Animations) == 0 {
			return errors.Errorf("No animation to measure blend from")
		}
		seq.ParamAnim = s.Animations[0]
	}
	if seq.ParamCompAnim == nil {
		seq.ParamCompAnim = seq.ParamAnim
	}

	mid, err := attachmentToWorld(s, seq.ParamAnim, nil, att)
	if err != nil {
		return err
	}
	worldToMid := utils.RigidInverse(mid)

	m := centerCell(seq, axis)
	last := seq.GroupSize[axis] - 1
	for m[axis] = 0; m[axis] <= last; m[axis]++ {
		rel, err := attachmentToWorld(s, seq.Blend(m[0], m[1]), seq.ParamCompAnim, att)
		if err != nil {
			return err
		}
		v := poseParamValue(seq.ParamControl[axis], worldToMid.Mul4(rel))
		seq.Param[axis][m[axis]] = v
		if m[axis] == 0 {
			seq.ParamStart[axis] = v
		}
		if m[axis] == last {
			seq.ParamEnd[axis] = v
		}
	}

	if d := seq.ParamStart[axis] - seq.ParamEnd[axis]; d > -0.01 && d < 0.01 {
		return errors.Errorf("calcblend failed in %q", seq.Name)
	}
	return nil
}

func expandPoseParam(p *studio.PoseParam, v float32) {
	if v < p.Min {
		p.Min = v
	}
	if v > p.Max {
		p.Max = v
	}
}

// CalcPoseParameters fills the blend grid coordinates of every sequence.
// Axes measured from an attachment take the values the attachment actually
// reaches and widen their pose parameter, the rest are spread evenly between
// the declared start and end.
func CalcPoseParameters(s *studio.Session) error {
	for _, seq := range s.Sequences {
		for axis := 0; axis < 2; axis++ {
			size := seq.GroupSize[axis]
			if size <= 1 {
				continue
			}
			seq.Param[axis] = make([]float32, size)

			if seq.ParamAttachment[axis] != -1 {
				if err := measureAxis(s, seq, axis); err != nil {
					return err
				}
				if j := seq.PoseParam[axis]; j >= 0 && j < len(s.PoseParams) {
					expandPoseParam(s.PoseParams[j], seq.ParamStart[axis])
					expandPoseParam(s.PoseParams[j], seq.ParamEnd[axis])
				}
				continue
			}

			for m := 0; m < size; m++ {
				f := float32(m) / float32(size-1)
				seq.Param[axis][m] = seq.ParamStart[axis]*(1-f) + seq.ParamEnd[axis]*f
			}
		}
	}
	return nil
}
