package remap

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// globalWeights maps source node weights onto global bones, nodes that ended
// up on the same bone are merged
func globalWeights(sm *studio.SourceModel, local []studio.BoneWeight) []studio.BoneWeight {
	r := make([]studio.BoneWeight, len(local))
	for i, w := range local {
		r[i] = studio.BoneWeight{Bone: sm.LocalToGlobal[w.Bone], Weight: w.Weight}
	}
	return source.NormalizeWeights(r)
}

// RemapVertices moves every mesh vertex onto the global bones.
// With blended weights vertices stay in model space, re-posed to the global reference pose.
// Otherwise they are stored in the space of their strongest bone.
func RemapVertices(s *studio.Session) error {
	for _, sm := range s.Models {
		if sm.LocalToGlobal == nil {
			return errors.Errorf("Source %q is not mapped to the bone table", sm.Name)
		}
		srcBoneToWorld := source.ReferenceToWorld(sm)
		destBoneToWorld := TranslateAnimation(s, sm.GlobalToLocal, srcBoneToWorld)

		for j := range sm.Vertices {
			v := &sm.Vertices[j]
			if len(v.Weights) == 0 {
				return errors.Errorf("Source %q vertex %d has no bone weights", sm.Name, j)
			}

			var pos, norm mgl32.Vec3
			if s.HasBoneWeights() {
				for _, w := range v.Weights {
					k := sm.LocalToGlobal[w.Bone]
					boneToPose := s.Bones[k].BoneToPose
					p := utils.TransformPoint(boneToPose, utils.ITransformPoint(destBoneToWorld[k], v.Pos))
					n := utils.RotateVector(boneToPose, utils.IRotateVector(destBoneToWorld[k], v.Normal))
					pos = pos.Add(p.Mul(w.Weight))
					norm = norm.Add(n.Mul(w.Weight))
				}
			}

			v.Weights = globalWeights(sm, v.Weights)
			if !s.HasBoneWeights() {
				boneToPose := s.Bones[v.Weights[0].Bone].BoneToPose
				pos = utils.ITransformPoint(boneToPose, v.Pos)
				norm = utils.IRotateVector(boneToPose, v.Normal)
			}

			v.Pos = pos
			if norm.Len() > 1e-6 {
				norm = norm.Normalize()
			}
			v.Normal = norm
		}
	}
	return nil
}

func truncate(v mgl32.Vec3) mgl32.Vec3 {
	for i := range v {
		v[i] = float32(math.Trunc(float64(v[i])*config.VERTEX_PRECISION) / config.VERTEX_PRECISION)
	}
	return v
}

func packWeights(weights []studio.BoneWeight) [config.MAX_BONE_WEIGHTS]studio.BoneWeight {
	var r [config.MAX_BONE_WEIGHTS]studio.BoneWeight
	for i := range r {
		r[i].Bone = -1
	}
	copy(r[:], weights)
	return r
}

func lookupVertex(sm *studio.SourceModel, v *studio.SourceVertex) int {
	pos := truncate(v.Pos)
	weights := packWeights(v.Weights)
	for i := range sm.Verts {
		if sm.Verts[i].Pos == pos && sm.Verts[i].Weights == weights {
			return i
		}
	}
	sm.Verts = append(sm.Verts, studio.ModelVertex{Pos: pos, Skin: v.Skin, Weights: weights, Count: len(v.Weights)})
	return len(sm.Verts) - 1
}

func lookupNormal(sm *studio.SourceModel, v *studio.SourceVertex) int {
	weights := packWeights(v.Weights)
	for i := range sm.Norms {
		n := &sm.Norms[i]
		if n.Pos.Dot(v.Normal) > config.NORMAL_BLEND && n.Skin == v.Skin && n.Weights == weights {
			return i
		}
	}
	sm.Norms = append(sm.Norms, studio.ModelVertex{Pos: v.Normal, Skin: v.Skin, Weights: weights, Count: len(v.Weights)})
	return len(sm.Norms) - 1
}

// BuildVertexArrays deduplicates positions and normals into Verts and Norms and
// points the triangles at them. Normals end up grouped by the mesh that uses them.
func BuildVertexArrays(s *studio.Session) error {
	for _, sm := range s.Models {
		sm.Verts = sm.Verts[:0]
		sm.Norms = sm.Norms[:0]
		for _, mesh := range sm.Meshes {
			for t := range mesh.Triangles {
				for q := 0; q < 3; q++ {
					tv := &mesh.Triangles[t][q]
					tv.Vert = lookupVertex(sm, &sm.Vertices[tv.Vert])
					tv.Norm = lookupNormal(sm, &sm.Vertices[tv.Norm])
				}
			}
		}
		sortNormals(sm)
	}
	return nil
}

func sortNormals(sm *studio.SourceModel) {
	remap := make([]int, len(sm.Norms))
	placed := make([]bool, len(sm.Norms))
	sorted := make([]studio.ModelVertex, 0, len(sm.Norms))
	for _, mesh := range sm.Meshes {
		mesh.NormIndex = len(sorted)
		mesh.NumNorms = 0
		for k, n := range sm.Norms {
			if !placed[k] && n.Skin == mesh.Material {
				remap[k] = len(sorted)
				placed[k] = true
				sorted = append(sorted, n)
				mesh.NumNorms++
			}
		}
	}
	for k, n := range sm.Norms {
		if !placed[k] {
			remap[k] = len(sorted)
			sorted = append(sorted, n)
		}
	}
	for _, mesh := range sm.Meshes {
		for t := range mesh.Triangles {
			for q := 0; q < 3; q++ {
				mesh.Triangles[t][q].Norm = remap[mesh.Triangles[t][q].Norm]
			}
		}
	}
	sm.Norms = sorted
}
