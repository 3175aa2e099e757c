package smd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legSMD = `version 1
// exported by hand
nodes
0 "root" -1
1 "knee" 0
2 "foot" 1
end
skeleton
time 0
0 0.000000 0.000000 40.000000 0.000000 0.000000 0.000000
1 0.000000 0.000000 -20.000000 0.000000 0.000000 0.000000
2 0.000000 0.000000 -20.000000 0.000000 0.000000 0.000000
time 2
0 10.0 0 40 0 0 1.5
end
triangles
Skin.BMP
0 0 0 40 0 0 1 0.0 1.0
1 0 1 20 0 0 1 0.5 0.5 2 1 0.5 2 0.25
2 1 0 0 0 0 1 1.0 0.0 1 2 1.0
end
`

func TestParseSMD(t *testing.T) {
	sm, err := Parse("leg", []byte(legSMD))
	require.NoError(t, err)

	require.Len(t, sm.Nodes, 3)
	assert.Equal(t, "knee", sm.Nodes[1].Name)
	assert.Equal(t, 1, sm.Nodes[2].Parent)
	assert.Equal(t, 1, sm.FindNode("KNEE"))

	// time 1 is missing and repeats time 0, time 2 only overrides the root
	require.Equal(t, 3, sm.NumFrames())
	assert.Equal(t, sm.Frames[0], sm.Frames[1])
	assert.Equal(t, mgl32.Vec3{10, 0, 40}, sm.Frames[2][0].Pos)
	assert.Equal(t, float32(1.5), sm.Frames[2][0].Rot[2])
	assert.Equal(t, mgl32.Vec3{0, 0, -20}, sm.Frames[2][2].Pos)

	require.Len(t, sm.Meshes, 1)
	assert.Equal(t, []string{"skin.bmp"}, sm.Materials)
	require.Len(t, sm.Meshes[0].Triangles, 1)
	tri := sm.Meshes[0].Triangles[0]
	assert.Equal(t, mgl32.Vec2{0.5, 0.5}, tri[1].UV)

	require.Len(t, sm.Vertices, 3)
	for _, v := range sm.Vertices {
		assert.InDelta(t, 1.0, v.WeightSum(), 1e-6)
	}
	// 0.5 to the knee link, 0.25 to the foot, the rest to the owner
	w := sm.Vertices[1].Weights
	require.Len(t, w, 2)
	assert.Equal(t, 1, w[0].Bone)
	assert.InDelta(t, 0.75, w[0].Weight, 1e-6)
	assert.Equal(t, 2, w[1].Bone)
	assert.InDelta(t, 0.25, w[1].Weight, 1e-6)

	assert.Equal(t, 2, sm.Vertices[2].Weights[0].Bone)
}

func TestParseSMDErrors(t *testing.T) {
	for _, text := range []string{
		"version 2\n",
		"nodes\n0 \"a\" -1\n",
		"nodes\n0 \"a\" -1\n1 \"b\" 3\nend\n",
		"nodes\n0 \"a\" -1\nend\nskeleton\n0 0 0 0 0 0 0\nend\n",
		"nodes\n0 \"a\" -1\nend\nskeleton\ntime 1\ntime 0\nend\n",
	} {
		_, err := Parse("bad", []byte(text))
		assert.Error(t, err, "%q", text)
	}
}
