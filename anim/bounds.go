package anim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func transformBounds(m mgl32.Mat4, b utils.Bounds) utils.Bounds {
	r := utils.NewBounds()
	for _, c := range b.Corners() {
		r.Add(utils.TransformPoint(m, c))
	}
	return r
}

// animationBounds covers every vertex and every bone box on every frame of a
func animationBounds(s *studio.Session, a *studio.Animation) (utils.Bounds, error) {
	bounds := utils.NewBounds()
	for j := range a.Sample {
		boneToWorld, err := remap.BoneTransforms(s, a, nil, j)
		if err != nil {
			return bounds, err
		}
		poseToWorld := make([]mgl32.Mat4, len(boneToWorld))
		for k, b := range s.Bones {
			poseToWorld[k] = boneToWorld[k].Mul4(b.PoseToBone())
			if !b.Bounds.Empty() {
				bounds.Merge(transformBounds(boneToWorld[k], b.Bounds))
			}
		}

		for _, sm := range s.Models {
			for _, v := range sm.Vertices {
				var pos mgl32.Vec3
				for _, w := range v.Weights {
					m := boneToWorld[w.Bone]
					if s.HasBoneWeights() {
						m = poseToWorld[w.Bone]
					}
					pos = pos.Add(utils.TransformPoint(m, v.Pos).Mul(w.Weight))
				}
				bounds.Add(pos)
			}
		}
	}
	return bounds, nil
}

// CalcBoundingBoxes fills the bounds of every animation and sequence and
// derives the model boxes when they were not declared
func CalcBoundingBoxes(s *studio.Session) error {
	for _, a := range s.Animations {
		b, err := animationBounds(s, a)
		if err != nil {
			return err
		}
		a.Bounds = b
	}

	for _, seq := range s.Sequences {
		seq.Bounds = utils.NewBounds()
		for _, a := range seq.Anims {
			seq.Bounds.Merge(a.Bounds)
		}
	}

	if len(s.Sequences) != 0 {
		if s.BBox.Empty() {
			s.BBox = s.Sequences[0].Bounds
		}
		if s.CBox.Empty() {
			s.CBox = s.BBox
		}
	}
	return nil
}
