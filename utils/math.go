package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// QuatToEuler returns roll (x), pitch (y), yaw (z) in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

// EulerToQuat takes roll (x), pitch (y), yaw (z) in radians, applied yaw first
func EulerToQuat(v mgl32.Vec3) mgl32.Quat {
	return mgl32.AnglesToQuat(v[2], v[1], v[0], mgl32.ZYX).Normalize()
}

func DegreeToRadiansV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(math.Pi / 180.0)
}

// MatrixFromPosRot builds a rigid transform, rotation from euler radians
func MatrixFromPosRot(pos, rot mgl32.Vec3) mgl32.Mat4 {
	return MatrixFromPosQuat(pos, EulerToQuat(rot))
}

func MatrixFromPosQuat(pos mgl32.Vec3, q mgl32.Quat) mgl32.Mat4 {
	m := q.Normalize().Mat4()
	m[12], m[13], m[14] = pos[0], pos[1], pos[2]
	return m
}

func MatrixPosition(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

func MatrixQuat(m mgl32.Mat4) mgl32.Quat {
	return mgl32.Mat4ToQuat(OrthonormalizeRotation(m)).Normalize()
}

// MatrixToPosRot splits a rigid transform back into position and euler radians
func MatrixToPosRot(m mgl32.Mat4) (pos, rot mgl32.Vec3) {
	return MatrixPosition(m), QuatToEuler(MatrixQuat(m))
}

// OrthonormalizeRotation drops translation and scale from m
func OrthonormalizeRotation(m mgl32.Mat4) mgl32.Mat4 {
	x := m.Col(0).Vec3()
	y := m.Col(1).Vec3()
	if x.Len() < 1e-12 {
		x = mgl32.Vec3{1, 0, 0}
	}
	x = x.Normalize()
	z := x.Cross(y)
	if z.Len() < 1e-12 {
		z = mgl32.Vec3{0, 0, 1}
	}
	z = z.Normalize()
	y = z.Cross(x).Normalize()
	return mgl32.Mat4FromCols(x.Vec4(0), y.Vec4(0), z.Vec4(0), mgl32.Vec4{0, 0, 0, 1})
}

// RigidInverse inverts a rotation+translation matrix
func RigidInverse(m mgl32.Mat4) mgl32.Mat4 {
	r := m.Mat3().Transpose()
	t := r.Mul3x1(MatrixPosition(m)).Mul(-1)
	inv := r.Mat4()
	inv[12], inv[13], inv[14] = t[0], t[1], t[2]
	return inv
}

func TransformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(v, m)
}

func RotateVector(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mat3().Mul3x1(v)
}

// ITransformPoint is the inverse of TransformPoint for rigid m
func ITransformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return IRotateVector(m, v.Sub(MatrixPosition(m)))
}

func IRotateVector(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mat3().Transpose().Mul3x1(v)
}

// QuatAlign picks the sign of q closest to p, so that blending takes the short path
func QuatAlign(p, q mgl32.Quat) mgl32.Quat {
	if p.Dot(q) < 0 {
		return mgl32.Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	return q
}

// QuatMA returns p * (q scaled by s)
func QuatMA(p mgl32.Quat, s float32, q mgl32.Quat) mgl32.Quat {
	return p.Mul(QuatScale(q, s)).Normalize()
}

// QuatScale scales the rotation angle of q
func QuatScale(q mgl32.Quat, s float32) mgl32.Quat {
	q = q.Normalize()
	if q.W < 0 {
		q = mgl32.Quat{W: -q.W, V: q.V.Mul(-1)}
	}
	sinom := q.V.Len()
	if sinom < 1e-7 {
		return mgl32.QuatIdent()
	}
	angle := math.Atan2(float64(sinom), float64(q.W)) * float64(s)
	sa, ca := math.Sincos(angle)
	return mgl32.Quat{W: float32(ca), V: q.V.Mul(float32(sa) / sinom)}
}

func QuatSlerpShort(p, q mgl32.Quat, t float32) mgl32.Quat {
	return mgl32.QuatSlerp(p, QuatAlign(p, q), t).Normalize()
}

// AngleNormalize wraps radians into [-pi, pi]
func AngleNormalize(a float32) float32 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func SimpleSpline(t float32) float32 {
	t2 := t * t
	return 3*t2 - 2*t2*t
}

type Bounds struct {
	Min, Max mgl32.Vec3
}

func NewBounds() Bounds {
	const big = 99999.0
	return Bounds{
		Min: mgl32.Vec3{big, big, big},
		Max: mgl32.Vec3{-big, -big, -big},
	}
}

func (b *Bounds) Add(v mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if v[i] < b.Min[i] {
			b.Min[i] = v[i]
		}
		if v[i] > b.Max[i] {
			b.Max[i] = v[i]
		}
	}
}

func (b *Bounds) Merge(o Bounds) {
	if o.Empty() {
		return
	}
	b.Add(o.Min)
	b.Add(o.Max)
}

func (b Bounds) Empty() bool {
	return b.Min[0] > b.Max[0]
}

func (b Bounds) Corners() [8]mgl32.Vec3 {
	var r [8]mgl32.Vec3
	for i := range r {
		for a := 0; a < 3; a++ {
			if i&(1<<a) != 0 {
				r[i][a] = b.Max[a]
			} else {
				r[i][a] = b.Min[a]
			}
		}
	}
	return r
}

func ClampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// QuatSM returns (p scaled by s) * q
func QuatSM(s float32, p, q mgl32.Quat) mgl32.Quat {
	return QuatScale(p, s).Mul(q).Normalize()
}
