// Package remap carries source vertices and source animation frames over to
// the global bone table.
package remap

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// TranslateAnimation turns source model space bone transforms into global bone transforms.
// A global bone the source does not have follows its parent in the reference pose.
func TranslateAnimation(s *studio.Session, globalToLocal []int, srcBoneToWorld []mgl32.Mat4) []mgl32.Mat4 {
	dest := make([]mgl32.Mat4, len(s.Bones))
	for k, b := range s.Bones {
		if q := globalToLocal[k]; q != -1 {
			dest[k] = srcBoneToWorld[q].Mul4(b.SrcRealign)
		} else if b.Parent != -1 {
			dest[k] = dest[b.Parent].Mul4(b.Local())
		} else {
			dest[k] = b.Local()
		}
	}
	return dest
}

// ConvertFrame returns the local pose of every global bone on frame of a
func ConvertFrame(s *studio.Session, a *studio.Animation, frame int) []studio.BonePose {
	srcBoneToWorld := source.AnimationToWorld(a, frame)
	destBoneToWorld := TranslateAnimation(s, a.Source.GlobalToLocal, srcBoneToWorld)

	r := make([]studio.BonePose, len(s.Bones))
	for k, b := range s.Bones {
		m := destBoneToWorld[k]
		if b.Parent != -1 {
			m = utils.RigidInverse(destBoneToWorld[b.Parent]).Mul4(m)
		}
		r[k] = studio.PoseFromMatrix(m)
	}
	return r
}

// RemapAnimations fills Sample of every animation from its source frames
func RemapAnimations(s *studio.Session) error {
	for _, a := range s.Animations {
		if a.Source == nil || a.Source.NumFrames() == 0 {
			return errors.Errorf("Animation %q has no source frames", a.Name)
		}
		if a.Source.GlobalToLocal == nil {
			return errors.Errorf("Animation %q source %q is not mapped to the bone table", a.Name, a.Source.Name)
		}
		first, last := a.SourceFrames()
		a.NumFrames = last - first + 1
		if a.NumFrames > config.MAX_ANIM_FRAMES {
			return errors.Errorf("Animation %q has too many frames, %d, limit is %d", a.Name, a.NumFrames, config.MAX_ANIM_FRAMES)
		}

		a.Sample = make([][]studio.BonePose, a.NumFrames)
		for f := range a.Sample {
			a.Sample[f] = ConvertFrame(s, a, f)
		}
	}
	return nil
}

func boneWeight(a *studio.Animation, k int) float32 {
	if a.Weight == nil {
		return 1
	}
	return a.Weight[k]
}

// BoneTransforms chains frame of a into model space. Delta animations are
// applied on top of frame 0 of base, or the reference pose when base is nil.
// Looping animations wrap around, their last frame being the first one.
func BoneTransforms(s *studio.Session, a, base *studio.Animation, frame int) ([]mgl32.Mat4, error) {
	n := len(a.Sample)
	if a.IsLooping() && n > 1 {
		for frame >= n-1 {
			frame -= n - 1
		}
	}
	if frame < 0 || frame >= n {
		return nil, errors.Errorf("Requested out of range frame on animation %q: %d (%d)", a.Name, frame, n)
	}

	r := make([]mgl32.Mat4, len(s.Bones))
	for k, b := range s.Bones {
		p := a.Sample[frame][k]

		var m mgl32.Mat4
		if !a.IsDelta() {
			m = p.Matrix()
		} else {
			basePose := b.Pose()
			if base != nil {
				basePose = base.Sample[0][k]
			}
			w := boneWeight(a, k)
			q := utils.QuatMA(basePose.Quat(), w, p.Quat())
			m = utils.MatrixFromPosQuat(basePose.Pos.Add(p.Pos.Mul(w)), q)
		}

		if b.Parent == -1 {
			r[k] = m
		} else {
			r[k] = r[b.Parent].Mul4(m)
		}
	}
	return r, nil
}

// BoneTransformsCycle interpolates BoneTransforms at cycle in [0, 1]
func BoneTransformsCycle(s *studio.Session, a, base *studio.Animation, cycle float32) ([]mgl32.Mat4, error) {
	f := cycle * float32(len(a.Sample)-1)
	i := int(f)
	t := f - float32(i)

	m0, err := BoneTransforms(s, a, base, i)
	if err != nil || t == 0 {
		return m0, err
	}
	m1, err := BoneTransforms(s, a, base, i+1)
	if err != nil {
		return nil, err
	}
	for k := range m0 {
		q := utils.QuatSlerpShort(utils.MatrixQuat(m0[k]), utils.MatrixQuat(m1[k]), t)
		pos := utils.MatrixPosition(m0[k]).Mul(1 - t).Add(utils.MatrixPosition(m1[k]).Mul(t))
		m0[k] = utils.MatrixFromPosQuat(pos, q)
	}
	return m0, nil
}
