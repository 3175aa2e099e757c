package skeleton

import (
	"math/bits"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// LinkBoneControllers resolves controller bones and marks the controlled channel on the bone
func LinkBoneControllers(s *studio.Session) error {
	for i, c := range s.BoneControllers {
		k := s.FindBone(c.Name)
		if k == -1 {
			return errors.Errorf("Unknown bone controller link %q", c.Name)
		}
		c.Bone = k

		channel := c.Type & (studio.STUDIO_X | studio.STUDIO_Y | studio.STUDIO_Z |
			studio.STUDIO_XR | studio.STUDIO_YR | studio.STUDIO_ZR)
		if channel == 0 {
			return errors.Errorf("Bone controller %q has no channel", c.Name)
		}
		s.Bones[k].Controllers[bits.TrailingZeros(uint(channel))] = i
	}
	return nil
}

// TagScreenAligned flags the bones that face the viewer
func TagScreenAligned(s *studio.Session) error {
	for _, sa := range s.ScreenAligned {
		k := s.FindBone(sa.Name)
		if k == -1 {
			return errors.Errorf("Unknown screenaligned bone link %q", sa.Name)
		}
		s.Bones[k].Flags |= sa.Flags
	}
	return nil
}

// LinkAttachments resolves the attachment bones. An attachment on a bone that
// was collapsed moves to the nearest surviving ancestor with its world transform kept.
func LinkAttachments(s *studio.Session) error {
	for _, att := range s.Attachments {
		var boneToPose, poseToBone mgl32.Mat4

		if k := s.FindBone(att.BoneName); k != -1 {
			att.Bone = k
			boneToPose = s.Bones[k].BoneToPose
			poseToBone = s.Bones[k].PoseToBone()
		} else {
			found := false
			for _, sm := range s.Models {
				k := sm.FindNode(att.BoneName)
				if k == -1 {
					continue
				}
				srcBoneToWorld := source.ReferenceToWorld(sm)
				boneToPose = srcBoneToWorld[k]
				for k != -1 && sm.GlobalToLocal[sm.LocalToGlobal[k]] != k {
					k = sm.Nodes[k].Parent
				}
				if k == -1 {
					return errors.Errorf("Unable to find valid bone for attachment %s:%s", att.Name, att.BoneName)
				}
				poseToBone = utils.RigidInverse(srcBoneToWorld[k])
				att.Bone = sm.LocalToGlobal[k]
				found = true
				break
			}
			if !found {
				return errors.Errorf("Unknown attachment link %q", att.BoneName)
			}
		}

		world := att.Local
		if att.Flags&studio.ATTACHMENT_ABSOLUTE == 0 {
			world = boneToPose.Mul4(att.Local)
		}
		att.Local = poseToBone.Mul4(world)
		for i := 12; i < 15; i++ {
			if abs32(att.Local[i]) < config.ATTACHMENT_JITTER {
				att.Local[i] = 0
			}
		}
	}

	for _, att := range s.Attachments {
		for j := att.Bone; j != -1; j = s.Bones[j].Parent {
			s.Bones[j].Flags |= studio.BONE_USED_BY_ATTACHMENT
		}
	}
	return nil
}

// SetupHitboxes assigns hit groups and resolves hitbox bones. Without any declared
// set a "default" set is built from the extents of the vertices weighted to each bone.
func SetupHitboxes(s *studio.Session) error {
	const unset = -9999
	for _, b := range s.Bones {
		b.HitGroup = unset
	}
	for _, hg := range s.HitGroups {
		k := s.FindBone(hg.Bone)
		if k == -1 {
			return errors.Errorf("Cannot find bone %q for hitgroup %d", hg.Bone, hg.Group)
		}
		s.Bones[k].HitGroup = hg.Group
	}
	for _, b := range s.Bones {
		if b.HitGroup == unset {
			if b.Parent != -1 {
				b.HitGroup = s.Bones[b.Parent].HitGroup
			} else {
				b.HitGroup = 0
			}
		}
	}

	if len(s.HitboxSets) != 0 {
		if err := checkHitboxSetNames(s); err != nil {
			return err
		}
		for _, set := range s.HitboxSets {
			for _, hb := range set.Hitboxes {
				k := s.FindBone(hb.Name)
				if k == -1 {
					return errors.Errorf("Cannot find bone %q for hitbox in set %q", hb.Name, set.Name)
				}
				hb.Bone = k
				s.Bones[k].Flags |= studio.BONE_USED_BY_HITBOX
			}
		}
		return nil
	}

	for _, b := range s.Bones {
		b.Bounds = utils.Bounds{}
	}
	for _, sm := range s.Models {
		for _, v := range sm.Vertices {
			for _, w := range v.Weights {
				b := s.Bones[w.Bone]
				p := v.Pos
				if s.HasBoneWeights() {
					p = utils.ITransformPoint(b.BoneToPose, v.Pos)
				}
				b.Bounds.Add(p)
			}
		}
	}
	for _, b := range s.Bones {
		if b.Parent != -1 {
			s.Bones[b.Parent].Bounds.Add(b.Pos)
		}
	}

	set := &studio.HitboxSet{Name: "default"}
	for k, b := range s.Bones {
		ok := true
		for i := 0; i < 3; i++ {
			if b.Bounds.Min[i] >= b.Bounds.Max[i]-config.HITBOX_MIN_EXTENT {
				ok = false
			}
		}
		if !ok {
			continue
		}
		if len(set.Hitboxes) >= config.MAX_HITBOXES {
			return errors.Errorf("Too many hitboxes, limit is %d", config.MAX_HITBOXES)
		}
		set.Hitboxes = append(set.Hitboxes, &studio.Hitbox{
			Name:  b.Name,
			Bone:  k,
			Group: b.HitGroup,
			Min:   b.Bounds.Min,
			Max:   b.Bounds.Max,
		})
		b.Flags |= studio.BONE_USED_BY_HITBOX
	}
	s.HitboxSets = append(s.HitboxSets, set)
	return nil
}

func checkHitboxSetNames(s *studio.Session) error {
	for i, a := range s.HitboxSets {
		for _, b := range s.HitboxSets[i+1:] {
			if strings.EqualFold(a.Name, b.Name) {
				return errors.Errorf("Duplicate hitbox set %q", a.Name)
			}
		}
	}
	return nil
}
