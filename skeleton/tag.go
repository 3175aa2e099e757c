package skeleton

import (
	"strings"

	"github.com/mogaika/studiomdl/studio"
)

// RenameBones applies the bone renames to every loaded source
func RenameBones(s *studio.Session) {
	for _, sm := range s.Sources() {
		for i := range sm.Nodes {
			for _, r := range s.Renames {
				if sm.Nodes[i].Name == r.From {
					sm.Nodes[i].Name = r.To
					break
				}
			}
		}
	}
}

// TagUsedBones fills BoneFlags with the direct uses of every mesh source node
// and BoneRef with the same flags accumulated from all descendants.
func TagUsedBones(s *studio.Session) {
	for _, sm := range s.Models {
		flags := make([]int, len(sm.Nodes))
		ref := make([]int, len(sm.Nodes))

		if len(sm.Vertices) == 0 {
			// skeleton only source, every node is wanted
			for j := range flags {
				flags[j] |= studio.BONE_USED_BY_BONE_MERGE
			}
		}

		for _, v := range sm.Vertices {
			for _, w := range v.Weights {
				flags[w.Bone] |= studio.BONE_USED_BY_VERTEX
			}
		}

		for _, att := range s.Attachments {
			j := sm.FindNode(att.BoneName)
			if j == -1 {
				continue
			}
			if att.Flags&studio.ATTACHMENT_RIGID != 0 {
				for n := j; n != -1; n = sm.Nodes[n].Parent {
					if flags[n]&studio.BONE_USED_BY_VERTEX != 0 {
						flags[n] |= studio.BONE_USED_BY_ATTACHMENT
						break
					}
				}
			} else {
				flags[j] |= studio.BONE_USED_BY_ATTACHMENT
			}
		}

		for _, chain := range s.IKChains {
			if j := sm.FindNode(chain.Bone); j != -1 {
				flags[j] |= studio.BONE_USED_BY_ATTACHMENT
			}
		}

		for _, name := range s.BoneMerge {
			if j := sm.FindNode(name); j != -1 {
				flags[j] |= studio.BONE_USED_BY_BONE_MERGE
			}
		}

		for k := range flags {
			if flags[k] == 0 {
				continue
			}
			ref[k] |= flags[k]
			for n := sm.Nodes[k].Parent; n != -1; n = sm.Nodes[n].Parent {
				ref[n] |= ref[k]
			}
		}

		sm.BoneFlags = flags
		sm.BoneRef = ref
	}
}

func tagImportedBoneMerge(s *studio.Session) {
	for _, name := range s.BoneMerge {
		for _, b := range s.Bones {
			if strings.EqualFold(b.Name, name) {
				b.Flags |= studio.BONE_USED_BY_BONE_MERGE
			}
		}
	}
}
