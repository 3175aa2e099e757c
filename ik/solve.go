package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/utils"
)

func axis(m mgl32.Mat4, i int) mgl32.Vec3 {
	return m.Col(i).Vec3()
}

func setAxis(m *mgl32.Mat4, i int, v mgl32.Vec3) {
	m.SetCol(i, v.Vec4(0))
}

func setOrigin(m *mgl32.Mat4, v mgl32.Vec3) {
	m.SetCol(3, v.Vec4(1))
}

// alignMatrix turns m so its X axis points along dir, keeping Z as close as it can
func alignMatrix(m *mgl32.Mat4, dir mgl32.Vec3) {
	x := dir.Normalize()
	y := axis(*m, 2).Cross(x).Normalize()
	setAxis(m, 0, x)
	setAxis(m, 1, y)
	setAxis(m, 2, x.Cross(y))
}

// twoBone places the knee of a chain with thigh length a and shin length b
// reaching foot, bending toward kneeHint. Positions are hip relative.
// Reports false when foot is out of reach.
func twoBone(a, b float32, foot, kneeHint mgl32.Vec3) (mgl32.Vec3, bool) {
	r := foot.Len()
	if r < 1e-6 {
		return mgl32.Vec3{}, false
	}
	x := foot.Mul(1 / r)
	y := kneeHint.Sub(x.Mul(kneeHint.Dot(x)))
	if y.Len() < 1e-6 {
		return mgl32.Vec3{}, false
	}
	y = y.Normalize()

	// law of cosines, d along hip to foot and e off it
	d := (r + (a*a-b*b)/r) / 2
	e2 := a*a - d*d
	if e2 < 0 {
		e2 = 0
	}
	e := float32(math.Sqrt(float64(e2)))

	return x.Mul(d).Add(y.Mul(e)), d > r-b && d < a
}

// solveWithKnee moves thigh, knee and foot of boneToWorld so the foot reaches
// target, the knee bending toward kneePos pushed along kneeDir
func solveWithKnee(thigh, knee, foot int, target, kneePos, kneeDir mgl32.Vec3, boneToWorld []mgl32.Mat4) bool {
	worldThigh := utils.MatrixPosition(boneToWorld[thigh])
	worldKnee := utils.MatrixPosition(boneToWorld[knee])
	worldFoot := utils.MatrixPosition(boneToWorld[foot])

	ikFoot := target.Sub(worldThigh)
	ikKnee := kneePos.Sub(worldThigh)

	l1 := worldKnee.Sub(worldThigh).Len()
	l2 := worldFoot.Sub(worldKnee).Len()

	// nearly straight legs need their knee target pushed far out
	d := ikFoot.Len() - float32(math.Min(float64(l1), float64(l2)))
	if d < l1+l2 {
		d = l1 + l2
	}
	ikTargetKnee := ikKnee.Add(kneeDir.Mul(d * config.IK_KNEE_PUSH))

	if reach := (l1 + l2) * config.KNEEMAX_EPSILON; ikFoot.Len() > reach {
		ikFoot = ikFoot.Normalize().Mul(reach)
	}

	// about an 80 degree bend at most
	minDist := float32(math.Max(math.Abs(float64(l1-l2))*1.15, math.Min(float64(l1), float64(l2))*0.15))
	if ikFoot.Len() < minDist {
		ikFoot = worldFoot.Sub(worldThigh).Normalize().Mul(minDist)
	}

	solvedKnee, ok := twoBone(l1, l2, ikFoot, ikTargetKnee)
	if !ok {
		return false
	}

	alignMatrix(&boneToWorld[thigh], solvedKnee)
	alignMatrix(&boneToWorld[knee], ikFoot.Sub(solvedKnee))
	setOrigin(&boneToWorld[knee], solvedKnee.Add(worldThigh))
	setOrigin(&boneToWorld[foot], ikFoot.Add(worldThigh))
	return true
}

// solve moves the chain so the foot reaches target, keeping the knee bending
// the way it currently does. A leg too straight to tell is left alone.
func solve(thigh, knee, foot int, target mgl32.Vec3, boneToWorld []mgl32.Mat4) bool {
	worldThigh := utils.MatrixPosition(boneToWorld[thigh])
	worldKnee := utils.MatrixPosition(boneToWorld[knee])
	worldFoot := utils.MatrixPosition(boneToWorld[foot])

	l1 := worldKnee.Sub(worldThigh).Len()
	l2 := worldFoot.Sub(worldKnee).Len()
	l3 := worldFoot.Sub(worldThigh).Len()
	if l3 < 1e-6 || l3 > (l1+l2)*config.KNEEMAX_EPSILON {
		return false
	}

	half := worldFoot.Sub(worldThigh).Mul(l1 / l3)
	kneeDir := worldKnee.Sub(worldThigh).Sub(half).Normalize()
	return solveWithKnee(thigh, knee, foot, target, worldKnee, kneeDir, boneToWorld)
}
