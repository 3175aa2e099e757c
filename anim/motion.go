package anim

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// twistAround keeps only the part of q that rotates around axis
func twistAround(q mgl32.Quat, axis int) float32 {
	var v mgl32.Vec3
	v[axis] = q.V[axis]
	t := mgl32.Quat{W: q.W, V: v}
	if t.Len() < 1e-8 {
		return 0
	}
	return utils.QuatToEuler(t.Normalize())[axis]
}

// quadraticThrough returns a, b for y = a*t^2 + b*t passing through (0.5, y1) and (1, y2)
func quadraticThrough(y1, y2 float32) (a, b float32) {
	return 2*y2 - 4*y1, 4*y1 - y2
}

// extractLinearMotion removes the root motion between startFrame and endFrame,
// matched against refFrame of ref, and records it as one movement key
func extractLinearMotion(s *studio.Session, a *studio.Animation, motionType, startFrame, endFrame, srcFrame int, ref *studio.Animation, refFrame int) error {
	n := len(a.Sample)
	if n <= 1 {
		return errors.Errorf("Can't extract motion from animation %q with a single frame", a.Name)
	}
	if len(a.Movements) >= config.MAX_MOVE_KEYS {
		return errors.Errorf("Too many movement keys in %q", a.Name)
	}
	if endFrame > n-1 {
		endFrame = n - 1
	}
	if srcFrame > n-1 {
		srcFrame = n - 1
	}
	if startFrame >= endFrame {
		s.Log.Warnf("motion extraction ignored, no frames remaining in %q", a.Name)
		return nil
	}

	root := s.RootIndex()
	fFrame := float32(startFrame+srcFrame) / 2
	midFrame := int(fFrame)
	frac := fFrame - float32(midFrame)

	var rot mgl32.Vec3
	if motionType&(studio.STUDIO_LXR|studio.STUDIO_LYR|studio.STUDIO_LZR) != 0 {
		q0 := ref.Sample[refFrame][root].Quat()
		deltaMid := utils.QuatMA(a.Sample[midFrame][root].Quat(), -1, q0)
		deltaEnd := utils.QuatMA(a.Sample[srcFrame][root].Quat(), -1, q0)

		if motionType&studio.STUDIO_LXR != 0 {
			rot[0] = twistAround(deltaEnd, 0)
		}
		if motionType&studio.STUDIO_LYR != 0 {
			rot[1] = twistAround(deltaEnd, 1)
		}
		if motionType&studio.STUDIO_LZR != 0 {
			// turns over 180 degrees are told apart by the direction at the halfway point
			end := twistAround(deltaEnd, 2)
			mid := utils.AngleNormalize(twistAround(deltaMid, 2))
			if mid > math.Pi/4 && end < 0 {
				end += 2 * math.Pi
			}
			if mid < -math.Pi/4 && end > 0 {
				end -= 2 * math.Pi
			}
			rot[2] = end
		}
	}

	p0 := utils.RotateVector(utils.MatrixFromPosRot(mgl32.Vec3{}, rot), ref.Sample[refFrame][root].Pos)
	p2 := a.Sample[srcFrame][root].Pos.Sub(p0)
	nextMid := midFrame + 1
	if nextMid > n-1 {
		nextMid = n - 1
	}
	p1 := a.Sample[midFrame][root].Pos.Mul(1 - frac).Add(a.Sample[nextMid][root].Pos.Mul(frac)).Sub(p0)

	for i, f := range []int{studio.STUDIO_LX, studio.STUDIO_LY, studio.STUDIO_LZ} {
		if motionType&f == 0 {
			p2[i] = 0
			p1[i] = 0
		}
	}

	d1, d2 := p1.Len(), p2.Len()
	v0 := -d2 + 4*d1
	v1 := 3*d2 - 4*d1
	switch {
	case motionType&studio.STUDIO_LINEAR != 0:
		v0, v1 = d2, d2
	case v0 < 0:
		v0, v1 = 0, d2*2
	case v1 < 0:
		v0, v1 = d2*2, 0
	case v0+v1 > 0.01 && float32(math.Abs(float64(v0-v1)))/(v0+v1) < config.MOTION_CONSTANT_SPEED_RATIO:
		v0, v1 = d2, d2
	}

	var dir mgl32.Vec3
	if d2 > 0 {
		dir = p2.Mul(1 / d2)
	}
	var qa, qb mgl32.Vec3
	if motionType&studio.STUDIO_QUADRATIC_MOTION != 0 {
		for i := 0; i < 3; i++ {
			qa[i], qb[i] = quadraticThrough(p1[i], p2[i])
		}
	}

	count := endFrame - startFrame + 1
	span := float32(count - 1)
	var adjPos, adjRot mgl32.Vec3
	var adj mgl32.Mat4
	for j := 0; j < count; j++ {
		t := float32(j) / span
		if motionType&studio.STUDIO_QUADRATIC_MOTION != 0 {
			for i := 0; i < 3; i++ {
				adjPos[i] = t*t*qa[i] + t*qb[i]
			}
		} else {
			adjPos = dir.Mul(v0*t + 0.5*(v1-v0)*t*t)
		}
		adjRot = rot.Mul(t)
		adj = utils.RigidInverse(utils.MatrixFromPosRot(adjPos, adjRot))
		transformRoots(s, a, startFrame+j, startFrame+j+1, adj)
	}
	// frames past the key keep the offset of its last frame
	transformRoots(s, a, startFrame+count, n, adj)

	move := &studio.Movement{EndFrame: endFrame, Flags: motionType, V0: v0, V1: v1}
	if len(a.Movements) > 0 {
		prev := a.Movements[len(a.Movements)-1]
		m := utils.MatrixFromPosRot(prev.Pos, prev.Rot).Mul4(utils.MatrixFromPosRot(adjPos, adjRot))
		move.Pos, move.Rot = utils.MatrixToPosRot(m)
		move.Vector = move.Pos.Sub(prev.Pos)
	} else {
		move.Pos, move.Rot = adjPos, adjRot
		move.Vector = adjPos
	}
	if move.Vector.Len() > 0 {
		move.Vector = move.Vector.Normalize()
	}
	a.Movements = append(a.Movements, move)

	if startFrame == 0 && srcFrame == n-1 {
		a.LinearMovement = move.Pos
	}
	return nil
}

// CalcPosition returns where the movement keys put the root on frame, frame 0
// being the origin. Frames past the end of a loop add whole loops of travel.
func CalcPosition(a *studio.Animation, frame int) mgl32.Vec3 {
	var pos mgl32.Vec3
	n := len(a.Sample)
	if len(a.Movements) == 0 || n <= 1 {
		return pos
	}

	loops := 0
	for frame >= n-1 {
		loops++
		frame -= n - 1
	}

	var prevFrame float32
	for _, m := range a.Movements {
		if m.EndFrame >= frame {
			f := (float32(frame) - prevFrame) / (float32(m.EndFrame) - prevFrame)
			d := m.V0*f + 0.5*(m.V1-m.V0)*f*f
			pos = pos.Add(m.Vector.Mul(d))
			if loops != 0 {
				pos = pos.Add(a.Movements[len(a.Movements)-1].Pos.Mul(float32(loops)))
			}
			return pos
		}
		prevFrame = float32(m.EndFrame)
		pos = m.Pos
	}
	return pos
}

// CalcMovement returns how far the animation travels from frame from to frame to
func CalcMovement(a *studio.Animation, from, to int) mgl32.Vec3 {
	return CalcPosition(a, to).Sub(CalcPosition(a, from))
}
