package anim

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// quatAlignment sweeps the rotations bone k goes through in a and returns the
// middle of the swept range
func quatAlignment(a *studio.Animation, k int) mgl32.Quat {
	base := a.Sample[0][k].Quat()
	qMin, qMax := base, base
	dMin, dMax := float32(1), float32(1)

	for j := 1; j < len(a.Sample); j++ {
		q := utils.QuatAlign(base, a.Sample[j][k].Quat())

		d0 := q.Dot(base)
		d1 := q.Dot(qMin)
		d2 := q.Dot(qMax)

		if d1 >= d0 {
			if d0 < dMin {
				qMin = q
				dMin = d0
				if dMax == 1 {
					qMax = utils.QuatAlign(base, utils.QuatMA(base, -0.01, qMin))
				}
			}
		} else if d2 >= d0 {
			if d0 < dMax {
				qMax = q
				dMax = d0
			}
		}

		base = mgl32.QuatSlerp(qMin, qMax, 0.5).Normalize()
		dMin = base.Dot(qMin)
		dMax = base.Dot(qMax)
	}
	return base
}

// LimitBoneRotations stores the middle of the rotation range of every bone
// listed for rotation limiting, so runtime blending never takes the long way round
func LimitBoneRotations(s *studio.Session) error {
	for _, name := range s.LimitRotation {
		k := s.FindBone(name)
		if k == -1 {
			return errors.Errorf("Unknown bone %q in rotation limits", name)
		}

		base := utils.EulerToQuat(s.Bones[k].Rot)
		for _, a := range s.Animations {
			if a.IsDelta() || len(a.Sample) <= 3 {
				continue
			}
			q := utils.QuatAlign(base, quatAlignment(a, k))
			base = mgl32.Quat{W: base.W + q.W, V: base.V.Add(q.V)}
		}

		s.Bones[k].QAlignment = base.Normalize()
		s.Bones[k].Flags |= studio.BONE_FIXED_ALIGNMENT
	}
	return nil
}
