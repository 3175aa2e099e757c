// Package ik links the declared inverse kinematics chains to the bone table,
// finds their knee directions and bakes the per frame error of every rule
// against its analytic target.
package ik

import (
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
)

// LinkChains resolves every chain from its end bone up two parents.
// Has to run before realignment, chain links are realigned toward each other.
func LinkChains(s *studio.Session) error {
	for _, c := range s.IKChains {
		k := s.FindBone(c.Bone)
		if k == -1 {
			return errors.Errorf("Unknown bone %q in ikchain %q", c.Bone, c.Name)
		}
		links := []studio.IKLink{{Bone: k}}

		for _, what := range []string{"knee/elbow", "hip/shoulder"} {
			k = s.Bones[k].Parent
			if k == -1 {
				return errors.Errorf("ikchain %q too close to root, no parent %s", c.Name, what)
			}
			links = append([]studio.IKLink{{Bone: k}}, links...)
		}

		links[0].KneeDir = c.Knee
		c.Links = links
		for _, l := range c.Links {
			s.Bones[l.Bone].Flags |= studio.BONE_USED_BY_ATTACHMENT
		}
	}
	return nil
}

// LinkLocks resolves the chain names of autoplay and sequence locks
func LinkLocks(s *studio.Session) error {
	link := func(l *studio.IKLock, where string) error {
		if l.Chain = s.FindIKChain(l.Name); l.Chain == -1 {
			return errors.Errorf("Unknown chain %q in %s", l.Name, where)
		}
		return nil
	}

	for _, l := range s.IKAutoplayLocks {
		if err := link(l, "ikautoplaylock"); err != nil {
			return err
		}
	}
	for _, seq := range s.Sequences {
		for _, l := range seq.IKLocks {
			if err := link(l, "sequence "+seq.Name+" iklock"); err != nil {
				return err
			}
		}
	}
	return nil
}
