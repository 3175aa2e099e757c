package anim

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func quatMAAngles(p mgl32.Vec3, s float32, q mgl32.Vec3) mgl32.Vec3 {
	return utils.QuatToEuler(utils.QuatMA(utils.EulerToQuat(p), s, utils.EulerToQuat(q)))
}

func quatSMAngles(s float32, p, q mgl32.Vec3) mgl32.Vec3 {
	return utils.QuatToEuler(utils.QuatSM(s, utils.EulerToQuat(p), utils.EulerToQuat(q)))
}

func weight(a *studio.Animation, k int) float32 {
	if a.Weight == nil {
		return 1
	}
	return a.Weight[k]
}

// deltaPose turns dest into a delta against src
func deltaPose(dest *studio.BonePose, src studio.BonePose, flags int) {
	if flags&studio.STUDIO_POST != 0 {
		// dest in the reference frame of src
		dest.Rot = quatSMAngles(-1, src.Rot, dest.Rot)
		dest.Pos = dest.Pos.Sub(src.Pos)
	} else {
		dest.Rot = quatMAAngles(dest.Rot, -1, src.Rot)
		dest.Pos = src.Pos.Sub(dest.Pos)
	}
}

func subtract(a, ref *studio.Animation, frame, flags int) error {
	if frame < 0 || frame >= len(ref.Sample) {
		return errors.Errorf("Subtract frame %d out of range for %q", frame, ref.Name)
	}
	a.Flags |= studio.STUDIO_DELTA

	src := append([]studio.BonePose(nil), ref.Sample[frame]...)
	for j := range a.Sample {
		for k := range src {
			if weight(a, k) > 0 {
				deltaPose(&a.Sample[j][k], src[k], flags)
			}
		}
	}
	return nil
}

// linearDelta subtracts from every frame the running blend of the first frame into the last one
func linearDelta(s *studio.Session, a *studio.Animation, flags int) {
	a.Flags |= studio.STUDIO_DELTA

	n := len(a.Sample)
	if n == 1 {
		s.Log.Warnf("%s too short for linear delta", a.Name)
	}
	src0 := append([]studio.BonePose(nil), a.Sample[0]...)
	src1 := append([]studio.BonePose(nil), a.Sample[n-1]...)

	for j := 0; j < n; j++ {
		t := float32(1)
		if n > 1 {
			t = float32(j) / float32(n-1)
		}
		if flags&studio.STUDIO_AL_SPLINE != 0 {
			t = utils.SimpleSpline(t)
		}
		for k := range src0 {
			if weight(a, k) <= 0 {
				continue
			}
			q := utils.QuatSlerpShort(src0[k].Quat(), src1[k].Quat(), t)
			src := studio.BonePose{
				Pos: src0[k].Pos.Mul(1 - t).Add(src1[k].Pos.Mul(t)),
				Rot: utils.QuatToEuler(q),
			}
			post := 0
			if flags&studio.STUDIO_AL_POST != 0 {
				post = studio.STUDIO_POST
			}
			deltaPose(&a.Sample[j][k], src, post)
		}
	}
}

func reencode(a *studio.Animation, frameSkip int) error {
	if frameSkip < 1 {
		return errors.Errorf("Invalid frame skip %d on %q", frameSkip, a.Name)
	}
	n := 1
	for j := frameSkip; j < len(a.Sample); j += frameSkip {
		a.Sample[n] = a.Sample[j]
		n++
	}
	a.Sample = a.Sample[:n]
	a.NumFrames = n
	a.Fps /= float32(frameSkip)
	return nil
}

func forceNumFrames(a *studio.Animation, frames int) {
	last := a.Sample[len(a.Sample)-1]
	for len(a.Sample) < frames {
		a.Sample = append(a.Sample, append([]studio.BonePose(nil), last...))
	}
	a.NumFrames = len(a.Sample)
}

func createDerivative(a *studio.Animation, scale float32) {
	j := len(a.Sample) - 1
	if a.IsLooping() && j > 0 {
		j--
	}
	orig := append([]studio.BonePose(nil), a.Sample[j]...)

	for j := len(a.Sample) - 1; j >= 0; j-- {
		src := orig
		if j > 0 {
			src = a.Sample[j-1]
		}
		dest := a.Sample[j]
		for k := range dest {
			if weight(a, k) <= 0 {
				continue
			}
			rot := quatSMAngles(-1, src[k].Rot, dest[k].Rot)
			dest[k].Rot = utils.QuatToEuler(utils.QuatScale(utils.EulerToQuat(rot), scale))
			dest[k].Pos = dest[k].Pos.Sub(src[k].Pos).Mul(scale)
		}
	}
}

func clearAnimation(a *studio.Animation) {
	a.Flags |= studio.STUDIO_DELTA | studio.STUDIO_ALLZEROS
	n := len(a.Sample[0])
	a.Sample = [][]studio.BonePose{make([]studio.BonePose, n)}
	a.NumFrames = 1
	a.Weight = make([]float32, n)
	a.PosWeight = make([]float32, n)
}

// SolveBone writes bone k of frame back from model space transforms
func SolveBone(s *studio.Session, a *studio.Animation, frame, k int, boneToWorld []mgl32.Mat4) {
	m := boneToWorld[k]
	if p := s.Bones[k].Parent; p != -1 {
		m = utils.RigidInverse(boneToWorld[p]).Mul4(m)
	}
	a.Sample[frame%len(a.Sample)][k] = studio.PoseFromMatrix(m)
}

// counterRotate keeps bone k at a fixed model space orientation
func counterRotate(s *studio.Session, a *studio.Animation, k int, target mgl32.Vec3) error {
	for j := range a.Sample {
		boneToWorld, err := remap.BoneTransforms(s, a, nil, j)
		if err != nil {
			return err
		}
		boneToWorld[k] = utils.MatrixFromPosRot(utils.MatrixPosition(boneToWorld[k]), target)
		SolveBone(s, a, j, k, boneToWorld)
	}
	return nil
}

func addDeltas(a *studio.Animation, frame int, t float32, deltaPos []mgl32.Vec3, deltaQ []mgl32.Quat) {
	for k := range deltaPos {
		if weight(a, k) > 0 {
			p := &a.Sample[frame][k]
			p.Rot = utils.QuatToEuler(utils.QuatSM(t, deltaQ[k], p.Quat()))
			p.Pos = p.Pos.Add(deltaPos[k].Mul(t))
		}
	}
}

// fixupLoop spreads the difference between the last and the first frame over
// the frames around the loop point. start counts back from the end, end forward from 0.
func fixupLoop(s *studio.Session, a *studio.Animation, start, end int) {
	m := len(a.Sample) - 1
	if m == 0 {
		return
	}

	deltaPos := make([]mgl32.Vec3, len(s.Bones))
	deltaQ := make([]mgl32.Quat, len(s.Bones))
	for k, b := range s.Bones {
		last, first := a.Sample[m][k], a.Sample[0][k]
		deltaPos[k] = last.Pos.Sub(first.Pos)
		deltaQ[k] = utils.QuatMA(last.Quat(), -1, first.Quat())

		// linear motion extraction takes care of the root translation
		if b.Parent == -1 {
			for i, f := range []int{studio.STUDIO_LX, studio.STUDIO_LY, studio.STUDIO_LZ} {
				if a.MotionType&f != 0 {
					deltaPos[k][i] = 0
				}
			}
		}
	}

	if end-start > len(a.Sample) {
		end = len(a.Sample) + start
		if end < 0 {
			end = 0
			start = -(len(a.Sample) - 1)
		}
	}

	nf := float32(end - start)
	for j := start + 1; j <= 0; j++ {
		t := utils.SimpleSpline(float32(j-start) / nf)
		addDeltas(a, m+j, -t, deltaPos, deltaQ)
	}
	for j := 0; j < end; j++ {
		t := utils.SimpleSpline(float32(end-j) / nf)
		addDeltas(a, j, t, deltaPos, deltaQ)
	}
}

func yawRotate(v mgl32.Vec3, degrees float32) mgl32.Vec3 {
	return mgl32.QuatRotate(mgl32.DegToRad(degrees), mgl32.Vec3{0, 0, 1}).Rotate(v)
}

// makeAngle rotates the root so that the animation travels along angle degrees of yaw
func makeAngle(s *studio.Session, a *studio.Animation, angle float32) {
	var da float32

	if len(a.Movements) != 0 {
		pos := a.Movements[len(a.Movements)-1].Pos
		if pos[0] != 0 || pos[1] != 0 {
			da = angle - mgl32.RadToDeg(float32(math.Atan2(float64(pos[1]), float64(pos[0]))))
		}
		for _, m := range a.Movements {
			m.Pos = yawRotate(m.Pos, da)
			m.Vector = yawRotate(m.Vector, da)
		}
	} else {
		root := s.RootIndex()
		pos := a.Sample[len(a.Sample)-1][root].Pos.Sub(a.Sample[0][root].Pos)
		if pos[0] != 0 || pos[1] != 0 {
			da = angle - mgl32.RadToDeg(float32(math.Atan2(float64(pos[1]), float64(pos[0]))))
		}
	}

	rootxform := utils.MatrixFromPosRot(mgl32.Vec3{}, mgl32.Vec3{0, 0, mgl32.DegToRad(da)})
	transformRoots(s, a, 0, len(a.Sample), rootxform)
}

// transformRoots premultiplies the root bones of frames [from, to) by m
func transformRoots(s *studio.Session, a *studio.Animation, from, to int, m mgl32.Mat4) {
	for j := from; j < to; j++ {
		for k, b := range s.Bones {
			if b.Parent == -1 {
				a.Sample[j][k] = studio.PoseFromMatrix(m.Mul4(a.Sample[j][k].Matrix()))
			}
		}
	}
}

// extractUnusedMotion pins the root channels named by the non-linear motion flags to frame 0
func extractUnusedMotion(s *studio.Session, a *studio.Animation) {
	pos := []int{studio.STUDIO_X, studio.STUDIO_Y, studio.STUDIO_Z}
	rot := []int{studio.STUDIO_XR, studio.STUDIO_YR, studio.STUDIO_ZR}
	for k, b := range s.Bones {
		if b.Parent != -1 {
			continue
		}
		first := a.Sample[0][k]
		for j := range a.Sample {
			for i := 0; i < 3; i++ {
				if a.MotionType&pos[i] != 0 {
					a.Sample[j][k].Pos[i] = first.Pos[i]
				}
				if a.MotionType&rot[i] != 0 {
					a.Sample[j][k].Rot[i] = first.Rot[i]
				}
			}
		}
	}
}

// fixupMissingFrame appends the overlapping frame a looping source did not have
func fixupMissingFrame(a *studio.Animation) {
	n := len(a.Sample)
	if n < 2 {
		return
	}
	scale := 1 / float32(n-1)
	next := make([]studio.BonePose, len(a.Sample[0]))
	for k := range next {
		last := &a.Sample[n-1][k]
		last.Pos = last.Pos.Add(last.Pos.Sub(a.Sample[0][k].Pos).Mul(scale))
		next[k].Rot = a.Sample[0][k].Rot
	}
	a.Sample = append(a.Sample, next)
	a.NumFrames = len(a.Sample)
}

// realignLooping rotates the frames so the animation starts on LoopRestart
func realignLooping(a *studio.Animation) error {
	n := len(a.Sample)
	if n <= 1 || a.LoopRestart == 0 {
		return nil
	}
	if a.LoopRestart >= n {
		return errors.Errorf("Loop start %d out of range for animation %q (%d)", a.LoopRestart, a.Name, n)
	}
	shifted := make([][]studio.BonePose, n)
	for j := 0; j < n-1; j++ {
		shifted[j] = a.Sample[(j+a.LoopRestart)%(n-1)]
	}
	shifted[n-1] = append([]studio.BonePose(nil), a.Sample[a.LoopRestart]...)
	a.Sample = shifted
	return nil
}

// ForceLoop copies the first frame over the last one on every channel that
// does not carry linear motion
func ForceLoop(a *studio.Animation) {
	if !a.IsLooping() {
		return
	}
	m := len(a.Sample) - 1
	pos := []int{studio.STUDIO_LX, studio.STUDIO_LY, studio.STUDIO_LZ}
	rot := []int{studio.STUDIO_LXR, studio.STUDIO_LYR, studio.STUDIO_LZR}
	for k := range a.Sample[m] {
		for i := 0; i < 3; i++ {
			if a.MotionType&pos[i] == 0 {
				a.Sample[m][k].Pos[i] = a.Sample[0][k].Pos[i]
			}
			if a.MotionType&rot[i] == 0 {
				a.Sample[m][k].Rot[i] = a.Sample[0][k].Rot[i]
			}
		}
	}
}
