package ik

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// FindKneeDirections sets the knee hint of every chain whose leg goes fully
// straight in some animation. The hint is the bend direction of the bent
// frames averaged in the space of the root link, weighted by how bent they are.
func FindKneeDirections(s *studio.Session) error {
	for _, c := range s.IKChains {
		kneeDir := c.Links[0].KneeDir
		hasKnees := kneeDir.Len() > 0
		needsFixup := false

		if !hasKnees {
			for _, a := range s.Animations {
				if a.Flags&(studio.STUDIO_DELTA|studio.STUDIO_HIDDEN) != 0 {
					continue
				}
				for j := range a.Sample {
					boneToWorld, err := remap.BoneTransforms(s, a, nil, j)
					if err != nil {
						return err
					}
					thigh := utils.MatrixPosition(boneToWorld[c.Links[0].Bone])
					knee := utils.MatrixPosition(boneToWorld[c.Links[1].Bone])
					foot := utils.MatrixPosition(boneToWorld[c.Links[2].Bone])

					l1 := knee.Sub(thigh).Len()
					l2 := foot.Sub(knee).Len()
					l3 := foot.Sub(thigh).Len()

					if l3 > (l1+l2)*config.IK_STRAIGHT_LEG {
						needsFixup = true
						continue
					}

					half := foot.Add(thigh).Mul(0.5)
					dir := utils.IRotateVector(boneToWorld[c.Links[0].Bone], knee.Sub(half).Normalize())
					bend := (thigh.Sub(knee).Dot(foot.Sub(knee))/(l1*l3) + 1) / 2
					kneeDir = kneeDir.Add(dir.Mul(bend))
					hasKnees = true
				}
			}
		}

		if !needsFixup {
			continue
		}
		if !hasKnees || kneeDir.Len() == 0 {
			s.Log.Warnf("ik rules for %s but no clear knee direction", c.Name)
			continue
		}
		c.Links[0].KneeDir = kneeDir.Normalize()
		if s.Options.Verbose {
			s.Log.Printf("knee %s %v", c.Name, c.Links[0].KneeDir)
		}
	}
	return nil
}

// KneeTarget returns where the knee hint of c points to in model space
func KneeTarget(c *studio.IKChain, boneToWorld []mgl32.Mat4) (mgl32.Vec3, bool) {
	if c.Links[0].KneeDir.Len() == 0 {
		return mgl32.Vec3{}, false
	}
	return utils.RotateVector(boneToWorld[c.Links[0].Bone], c.Links[0].KneeDir), true
}
