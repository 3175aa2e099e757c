package skeleton

import (
	"math"
	"strings"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func poseDifferent(a, b studio.BonePose) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a.Pos[i]-b.Pos[i])) > config.COLLAPSE_EPSILON {
			return true
		}
		if math.Abs(float64(utils.AngleNormalize(a.Rot[i]-b.Rot[i]))) > config.COLLAPSE_EPSILON {
			return true
		}
	}
	return false
}

// BoneHasAnimation reports whether the local pose of the bone called name changes
// within any animation. Roots always count as animated.
func BoneHasAnimation(s *studio.Session, name string) bool {
	if k := s.FindBone(name); k != -1 && s.Bones[k].Parent == -1 {
		return true
	}

	for _, a := range s.Animations {
		if a.Source == nil {
			continue
		}
		node := a.Source.FindNode(name)
		if node == -1 {
			continue
		}
		first, last := a.SourceFrames()
		start := a.Source.Frames[first][node]
		for f := first + 1; f <= last; f++ {
			if poseDifferent(start, a.Source.Frames[f][node]) {
				return true
			}
		}
	}
	return false
}

func boneIsProcedural(s *studio.Session, name string) bool {
	for _, p := range s.Procedural {
		if strings.EqualFold(p.BoneName(), name) {
			return true
		}
	}
	return false
}

func boneIsIK(s *studio.Session, name string) bool {
	for _, c := range s.IKChains {
		if strings.EqualFold(c.Bone, name) {
			return true
		}
	}
	return false
}

func boneShouldCollapse(s *studio.Session, name string) bool {
	for _, c := range s.AlwaysCollapse {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return !BoneHasAnimation(s, name) && !boneIsProcedural(s, name) && !boneIsIK(s, name)
}

// CollapseBones removes bones that neither move relative to their parent nor
// are needed by anything else. Children of a removed bone move to its parent.
// Returns the number of removed bones.
func CollapseBones(s *studio.Session) int {
	count := 0
	for k := 0; k < len(s.Bones); k++ {
		b := s.Bones[k]
		if b.DontCollapse {
			continue
		}
		if (b.Flags != 0 || b.PreDefined) && !boneShouldCollapse(s, b.Name) {
			continue
		}

		s.Log.Printf("collapsing %s", b.Name)
		removeBone(s, k)
		count++
		k--
	}
	if count != 0 {
		s.Log.Printf("Collapsed %d bones", count)
	}
	return count
}

func removeBone(s *studio.Session, k int) {
	m := s.Bones[k].Parent
	s.Bones = append(s.Bones[:k], s.Bones[k+1:]...)
	for _, b := range s.Bones[k:] {
		if b.Parent == k {
			b.Parent = m
		} else if b.Parent > k {
			b.Parent--
		}
	}
}
