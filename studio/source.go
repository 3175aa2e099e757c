package studio

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type SourceNode struct {
	Name   string
	Parent int
}

type BoneWeight struct {
	Bone   int
	Weight float32
}

// SourceVertex weights reference source nodes until remapping, global bones after
type SourceVertex struct {
	Pos     mgl32.Vec3
	Normal  mgl32.Vec3
	Weights []BoneWeight
	// material of the first triangle using this vertex
	Skin int
}

func (v *SourceVertex) WeightSum() float32 {
	var sum float32
	for _, w := range v.Weights {
		sum += w.Weight
	}
	return sum
}

type TriangleVert struct {
	// index into SourceModel.Vertices, replaced by Verts/Norms indices after BuildVertexArrays
	Vert int
	Norm int
	UV   mgl32.Vec2
	// texel coordinates, valid after texture packing
	S, T int
}

type SourceMesh struct {
	// index into SourceModel.Materials, then Session.Textures after texture linking
	Material  int
	Skin      int
	Triangles [][3]TriangleVert

	NormIndex int
	NumNorms  int

	// filled by the triangle optimizer
	Strips []StripCommand
}

// StripCommand is a run of triangles, positive count strip and negative count fan
type StripCommand struct {
	Count int
	Verts []TriangleVert
}

// ModelVertex is a unique position or normal after remapping
type ModelVertex struct {
	Pos     mgl32.Vec3
	Skin    int
	Weights [4]BoneWeight
	Count   int
}

func (mv *ModelVertex) Bone() int {
	return mv.Weights[0].Bone
}

// SourceModel is one loaded source file: a node list, per frame local poses
// and optionally a weighted triangle mesh.
type SourceModel struct {
	Name string
	Path string

	Nodes []SourceNode
	// [frame][node], frame 0 is the reference pose of a mesh source
	Frames [][]BonePose

	Vertices  []SourceVertex
	Meshes    []*SourceMesh
	Materials []string

	// bone flags per node, and the same flags accumulated from children
	BoneFlags []int
	BoneRef   []int

	LocalToGlobal []int
	GlobalToLocal []int

	Verts []ModelVertex
	Norms []ModelVertex

	BoundingRadius float32
}

func (sm *SourceModel) FindNode(name string) int {
	for i := range sm.Nodes {
		if strings.EqualFold(sm.Nodes[i].Name, name) {
			return i
		}
	}
	return -1
}

func (sm *SourceModel) NumFrames() int {
	return len(sm.Frames)
}

// Skeleton returns the reference pose
func (sm *SourceModel) Skeleton() []BonePose {
	if len(sm.Frames) == 0 {
		return nil
	}
	return sm.Frames[0]
}

func (sm *SourceModel) NumTriangles() int {
	n := 0
	for _, m := range sm.Meshes {
		n += len(m.Triangles)
	}
	return n
}
