// Package gltfutils reads the references and transforms of glTF documents
package gltfutils

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// Index resolves optional and required document references alike
func Index[T uint32 | *uint32](ref T) (int, bool) {
	switch r := any(ref).(type) {
	case uint32:
		return int(r), true
	case *uint32:
		if r == nil {
			return 0, false
		}
		return int(*r), true
	}
	return 0, false
}

// NodeTransform returns the local translation and rotation of node
func NodeTransform(node *gltf.Node) (mgl32.Vec3, mgl32.Quat) {
	if node.Matrix != [16]float32{} && mgl32.Mat4(node.Matrix) != mgl32.Ident4() {
		m := mgl32.Mat4(node.Matrix)
		return mgl32.Vec3{m[12], m[13], m[14]}, mgl32.Mat4ToQuat(m).Normalize()
	}
	q := mgl32.QuatIdent()
	if r := node.Rotation; r != [4]float32{} {
		q = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
	}
	return mgl32.Vec3(node.Translation), q
}
