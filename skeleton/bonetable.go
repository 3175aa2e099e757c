package skeleton

import (
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// BuildGlobalBonetable unions the used bones of every mesh source into s.Bones.
// Imported bones go first and keep their transform.
func BuildGlobalBonetable(s *studio.Session) error {
	s.Bones = s.Bones[:0]

	for _, ib := range s.ImportBones {
		k := s.FindBone(ib.Name)
		if k == -1 {
			parent := -1
			if ib.Parent != "" {
				if parent = s.FindBone(ib.Parent); parent == -1 {
					s.Log.Warnf("Imported bone %q has unknown parent %q", ib.Name, ib.Parent)
				}
			}
			b := studio.NewGlobalBone(ib.Name, parent)
			b.PreDefined = true
			b.RawLocal = ib.RawLocal
			var err error
			if k, err = s.AddBone(b); err != nil {
				return errors.Wrapf(err, "Imported bone %q", ib.Name)
			}
		}
		b := s.Bones[k]
		b.DontCollapse = true
		b.SrcRealign = ib.SrcRealign
		b.PreAligned = true
	}

	tagImportedBoneMerge(s)

	for _, sm := range s.Models {
		skeleton := sm.Skeleton()
		if skeleton == nil {
			return errors.Errorf("Source %q has no reference frame", sm.Name)
		}
		srcBoneToWorld := source.ReferenceToWorld(sm)

		for j, node := range sm.Nodes {
			if s.Options.AggressiveCollapse {
				if sm.BoneFlags[j] == 0 {
					continue
				}
			} else if sm.BoneRef[j] == 0 {
				continue
			}

			k := s.FindBone(node.Name)
			if k == -1 {
				parent := -1
				if node.Parent != -1 {
					parent = s.FindBone(sm.Nodes[node.Parent].Name)
				}
				b := studio.NewGlobalBone(node.Name, parent)
				b.Flags = sm.BoneFlags[j]
				b.RawLocal = skeleton[j].Matrix()
				if _, err := s.AddBone(b); err != nil {
					return errors.Wrapf(err, "Source %q bone %q", sm.Name, node.Name)
				}
				continue
			}

			b := s.Bones[k]
			b.Flags |= sm.BoneFlags[j]
			if s.Options.OverrideBones && b.PreDefined {
				b.BoneToPose = srcBoneToWorld[j].Mul4(b.SrcRealign)
				if b.Parent == -1 {
					b.RawLocal = b.BoneToPose
				} else {
					b.RawLocal = s.Bones[b.Parent].PoseToBone().Mul4(b.BoneToPose)
				}
			}
		}
	}
	return nil
}

// BuildGlobalBoneToPose chains RawLocal into BoneToPose
func BuildGlobalBoneToPose(s *studio.Session) {
	for _, b := range s.Bones {
		if b.Parent == -1 {
			b.BoneToPose = b.RawLocal
		} else {
			b.BoneToPose = s.Bones[b.Parent].BoneToPose.Mul4(b.RawLocal)
		}
	}
}

// RebuildLocalPose derives RawLocal, Pos and Rot from BoneToPose
func RebuildLocalPose(s *studio.Session) {
	for _, b := range s.Bones {
		if b.Parent == -1 {
			b.RawLocal = b.BoneToPose
		} else {
			b.RawLocal = s.Bones[b.Parent].PoseToBone().Mul4(b.BoneToPose)
		}
		b.Pos, b.Rot = utils.MatrixToPosRot(b.RawLocal)
	}
}

// BuildBoneToPose chains Pos and Rot into BoneToPose
func BuildBoneToPose(s *studio.Session) {
	for _, b := range s.Bones {
		if b.Parent == -1 {
			b.BoneToPose = b.Local()
		} else {
			b.BoneToPose = s.Bones[b.Parent].BoneToPose.Mul4(b.Local())
		}
	}
}

// MapSources links every source node to a global bone.
// A node without a bone of its own maps to its nearest ancestor that has one, or to bone 0.
func MapSources(s *studio.Session) {
	for _, sm := range s.Sources() {
		sm.LocalToGlobal = make([]int, len(sm.Nodes))
		sm.GlobalToLocal = make([]int, len(s.Bones))
		for k := range sm.GlobalToLocal {
			sm.GlobalToLocal[k] = -1
		}

		for j, node := range sm.Nodes {
			k := s.FindBone(node.Name)
			if k != -1 {
				sm.LocalToGlobal[j] = k
				sm.GlobalToLocal[k] = j
				continue
			}
			for m := node.Parent; m != -1 && k == -1; m = sm.Nodes[m].Parent {
				k = s.FindBone(sm.Nodes[m].Name)
			}
			if k == -1 {
				k = 0
			}
			sm.LocalToGlobal[j] = k
		}
	}
}
