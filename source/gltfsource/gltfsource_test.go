package gltfsource

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/utils/testutils"
)

func legDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Nodes = []*gltf.Node{
		{Name: "armature", Children: []uint32{1, 3}, Rotation: [4]float32{0, 0, 0.70710677, 0.70710677}},
		{Name: "hip", Children: []uint32{2}, Translation: [3]float32{0, 0, 10}},
		{Name: "knee", Translation: [3]float32{0, 0, -5}},
		{Name: "body", Mesh: gltf.Index(0), Skin: gltf.Index(0)},
	}
	doc.Skins = []*gltf.Skin{{Joints: []uint32{1, 2}}}

	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 10}, {1, 0, 5}, {0, 1, 5}})
	joints := modeler.WriteJoints(doc, [][4]uint16{{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 1, 0, 0}})
	weights := modeler.WriteWeights(doc, [][4]float32{{1, 0, 0, 0}, {1, 0, 0, 0}, {0.5, 0.5, 0, 0}})
	indices := modeler.WriteIndices(doc, []uint32{0, 1, 2})

	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(indices),
			Attributes: map[string]uint32{
				"POSITION":  pos,
				"JOINTS_0":  joints,
				"WEIGHTS_0": weights,
			},
		}},
	}}
	return doc
}

func TestFromDocumentSkeleton(t *testing.T) {
	scene, err := FromDocument("leg", legDocument())
	require.NoError(t, err)
	sm := scene.Reference

	require.Len(t, sm.Nodes, 2)
	assert.Equal(t, "hip", sm.Nodes[0].Name)
	assert.Equal(t, -1, sm.Nodes[0].Parent)
	assert.Equal(t, "knee", sm.Nodes[1].Name)
	assert.Equal(t, 0, sm.Nodes[1].Parent)

	// the armature rotation is folded into the root bone
	rest := sm.Skeleton()
	testutils.Vec3(t, mgl32.Vec3{0, 0, 10}, rest[0].Pos, "hip pos %v", rest[0].Pos)
	assert.InDelta(t, math.Pi/2, rest[0].Rot[2], 1e-4)
	testutils.Vec3(t, mgl32.Vec3{0, 0, -5}, rest[1].Pos, "knee pos %v", rest[1].Pos)
	testutils.Vec3(t, mgl32.Vec3{}, rest[1].Rot)

	assert.Empty(t, scene.Animations)
}

func TestFromDocumentMesh(t *testing.T) {
	scene, err := FromDocument("leg", legDocument())
	require.NoError(t, err)
	sm := scene.Reference

	require.Len(t, sm.Meshes, 1)
	assert.Equal(t, []string{"default"}, sm.Materials)
	require.Len(t, sm.Meshes[0].Triangles, 1)
	require.Len(t, sm.Vertices, 3)

	assert.Equal(t, 1, sm.Vertices[1].Weights[0].Bone)
	w := sm.Vertices[2].Weights
	require.Len(t, w, 2)
	assert.Equal(t, 0, w[0].Bone)
	assert.InDelta(t, 0.5, w[0].Weight, 1e-6)
	assert.Equal(t, 1, w[1].Bone)
	for _, v := range sm.Vertices {
		assert.InDelta(t, 1.0, v.WeightSum(), 1e-6)
	}
}
