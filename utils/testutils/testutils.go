// Package testutils holds assertions shared by the package tests
package testutils

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// Delta is the per component tolerance of the vector and matrix assertions
const Delta = 1e-4

// Vec3 compares every component with an absolute tolerance. mgl32
// ApproxEqualThreshold is relative and fails around zero.
func Vec3(t *testing.T, want, got mgl32.Vec3, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.InDeltaSlice(t, want[:], got[:], Delta, msgAndArgs...)
}

func Mat4(t *testing.T, want, got mgl32.Mat4, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.InDeltaSlice(t, want[:], got[:], Delta, msgAndArgs...)
}

func Quat(t *testing.T, want, got mgl32.Quat, msgAndArgs ...interface{}) bool {
	t.Helper()
	w := []float32{want.W, want.V[0], want.V[1], want.V[2]}
	g := []float32{got.W, got.V[0], got.V[1], got.V[2]}
	return assert.InDeltaSlice(t, w, g, Delta, msgAndArgs...)
}
