package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// childBones picks for every bone the child its X axis should point at, -1 for none.
// IK links always align, with Options.Realign a bone with a single child aligns too.
func childBones(s *studio.Session) ([]int, error) {
	child := make([]int, len(s.Bones))
	for k := range child {
		child[k] = -1
	}

	link := func(k, c int) error {
		if child[k] != -1 && child[k] != c {
			return errors.Errorf("Trying to realign bone %q with two children %q, %q",
				s.Bones[k].Name, s.Bones[child[k]].Name, s.Bones[c].Name)
		}
		child[k] = c
		return nil
	}
	for _, chain := range s.IKChains {
		for i := 0; i+1 < len(chain.Links); i++ {
			if err := link(chain.Links[i].Bone, chain.Links[i+1].Bone); err != nil {
				return nil, err
			}
		}
	}

	if s.Options.Realign {
		children := make([]int, len(s.Bones))
		for _, b := range s.Bones {
			if b.Parent != -1 {
				children[b.Parent]++
			}
		}
		for k, b := range s.Bones {
			if b.Parent != -1 && children[b.Parent] == 1 {
				child[b.Parent] = k
			}
		}
	}
	return child, nil
}

// alignToChild returns boneToPose turned so that its X axis points at childOrigin.
// Of the old axes the one most perpendicular to the new X is kept as close as possible.
func alignToChild(boneToPose mgl32.Mat4, childOrigin mgl32.Vec3) (mgl32.Mat4, bool) {
	origin := utils.MatrixPosition(boneToPose)
	forward := childOrigin.Sub(origin).Normalize()

	axes := [3]mgl32.Vec3{
		boneToPose.Col(0).Vec3(),
		boneToPose.Col(1).Vec3(),
		boneToPose.Col(2).Vec3(),
	}
	pick := 0
	best := abs32(forward.Dot(axes[0]))
	for i := 1; i < 3; i++ {
		if d := abs32(forward.Dot(axes[i])); d < best {
			pick, best = i, d
		}
	}

	up := forward.Cross(axes[pick]).Normalize()
	left := up.Cross(forward)

	d := abs32(forward.Dot(left)) + abs32(left.Dot(up)) + abs32(up.Dot(forward))
	if d > config.ORTHONORMAL_EPSILON {
		return boneToPose, false
	}
	return mgl32.Mat4FromCols(forward.Vec4(0), left.Vec4(0), up.Vec4(0), origin.Vec4(1)), true
}

// RealignBones turns bones to point their X axis at their child and applies the
// forced realignments. The change of every bone is kept in SrcRealign so that
// source frames can be carried over to the new bone space.
func RealignBones(s *studio.Session) error {
	child, err := childBones(s)
	if err != nil {
		return err
	}

	boneToPose := make([]mgl32.Mat4, len(s.Bones))
	for k, b := range s.Bones {
		boneToPose[k] = b.BoneToPose
	}

	for k, b := range s.Bones {
		if b.PreAligned || child[k] == -1 {
			continue
		}
		c := s.Bones[child[k]]
		if c.Pos.Len()-c.Pos[0] <= config.REALIGN_EPSILON {
			continue
		}
		aligned, ok := alignToChild(boneToPose[k], utils.MatrixPosition(c.BoneToPose))
		if !ok {
			return errors.Errorf("Failed to realign bone %q", b.Name)
		}
		boneToPose[k] = aligned
	}

	for _, fr := range s.ForcedRealign {
		k := s.FindBone(fr.Name)
		if k == -1 {
			return errors.Errorf("Unknown bone %q in forced realign", fr.Name)
		}
		boneToPose[k] = boneToPose[k].Mul4(utils.MatrixFromPosRot(mgl32.Vec3{}, fr.Rot))
	}

	for k, b := range s.Bones {
		if b.PreAligned {
			continue
		}
		b.SrcRealign = b.PoseToBone().Mul4(boneToPose[k])
		b.BoneToPose = boneToPose[k]
	}

	for _, b := range s.Bones {
		if b.PreAligned {
			continue
		}
		local := b.BoneToPose
		if b.Parent != -1 {
			local = s.Bones[b.Parent].PoseToBone().Mul4(b.BoneToPose)
		}
		b.Pos, b.Rot = utils.MatrixToPosRot(local)
	}

	BuildBoneToPose(s)
	return nil
}
