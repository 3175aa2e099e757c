package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/mogaika/studiomdl/utils/testutils"
)

var eulerTests = []mgl32.Vec3{
	{0, 0, 0},
	{0.3, 0, 0},
	{0, 0.4, 0},
	{0, 0, -1.2},
	{0.1, -0.2, 0.3},
	{-2.5, 1.1, 3.0},
}

func TestEulerRoundTrip(t *testing.T) {
	for _, e := range eulerTests {
		q := EulerToQuat(e)
		back := EulerToQuat(QuatToEuler(q))
		assert.True(t, q.OrientationEqualThreshold(back, 1e-4), "euler %v gave %v", e, QuatToEuler(q))
	}
}

func TestEulerYawRotatesXToY(t *testing.T) {
	q := EulerToQuat(mgl32.Vec3{0, 0, math.Pi / 2})
	v := q.Rotate(mgl32.Vec3{1, 0, 0})
	testutils.Vec3(t, mgl32.Vec3{0, 1, 0}, v, "got %v", v)
}

func TestRigidInverse(t *testing.T) {
	m := MatrixFromPosRot(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0.2, -0.7, 1.4})
	testutils.Mat4(t, mgl32.Ident4(), m.Mul4(RigidInverse(m)))
	testutils.Mat4(t, m.Inv(), RigidInverse(m))

	p := mgl32.Vec3{5, -4, 2}
	testutils.Vec3(t, p, ITransformPoint(m, TransformPoint(m, p)))
}

func TestMatrixToPosRot(t *testing.T) {
	pos, rot := mgl32.Vec3{4, 5, 6}, mgl32.Vec3{0.5, 0.25, -0.75}
	gotPos, gotRot := MatrixToPosRot(MatrixFromPosRot(pos, rot))
	testutils.Vec3(t, pos, gotPos)
	testutils.Vec3(t, rot, gotRot, "got %v", gotRot)
}

func TestQuatScale(t *testing.T) {
	q := mgl32.QuatRotate(1.0, mgl32.Vec3{0, 0, 1})
	half := QuatScale(q, 0.5)
	assert.True(t, half.OrientationEqualThreshold(mgl32.QuatRotate(0.5, mgl32.Vec3{0, 0, 1}), 1e-5))
	assert.True(t, QuatScale(q, 0).OrientationEqualThreshold(mgl32.QuatIdent(), 1e-5))
}

func TestAngleNormalize(t *testing.T) {
	assert.InDelta(t, 0.5, AngleNormalize(0.5+2*math.Pi), 1e-5)
	assert.InDelta(t, -0.5, AngleNormalize(-0.5-4*math.Pi), 1e-5)
}

func TestBounds(t *testing.T) {
	b := NewBounds()
	assert.True(t, b.Empty())
	b.Add(mgl32.Vec3{1, -2, 3})
	b.Add(mgl32.Vec3{-1, 2, 0})
	assert.False(t, b.Empty())
	assert.Equal(t, mgl32.Vec3{-1, -2, 0}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Max)
}
