package skeleton

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
)

// EnforceHierarchy applies the forced parents and reorders s.Bones so that
// every parent comes before its children. Bones keep their relative order otherwise.
func EnforceHierarchy(s *studio.Session) error {
	for _, fh := range s.ForcedHierarchy {
		parent := s.FindBone(fh.Parent)
		if parent == -1 && fh.Parent != "" {
			return errors.Errorf("Unknown bone %q in forced hierarchy", fh.Parent)
		}
		child := s.FindBone(fh.Child)
		if child == -1 {
			return errors.Errorf("Unknown bone %q in forced hierarchy", fh.Child)
		}

		if fh.SubParent != "" {
			sub := s.FindBone(fh.SubParent)
			if sub == -1 {
				b := studio.NewGlobalBone(fh.SubParent, parent)
				if parent != -1 {
					b.BoneToPose = s.Bones[parent].BoneToPose
				}
				b.DontCollapse = true
				var err error
				if sub, err = s.AddBone(b); err != nil {
					return errors.Wrapf(err, "Inserting bone %q", fh.SubParent)
				}
			}
			parent = sub
		}
		s.Bones[child].Parent = parent
	}

	return sortBones(s)
}

func sortBones(s *studio.Session) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(s.Bones))
	order := make([]int, 0, len(s.Bones))

	var visit func(k int, path []int) error
	visit = func(k int, path []int) error {
		switch state[k] {
		case done:
			return nil
		case visiting:
			return cycleError(s, append(path, k))
		}
		state[k] = visiting
		if p := s.Bones[k].Parent; p != -1 {
			if err := visit(p, append(path, k)); err != nil {
				return err
			}
		}
		state[k] = done
		order = append(order, k)
		return nil
	}

	for k := range s.Bones {
		if err := visit(k, nil); err != nil {
			return err
		}
	}

	remap := make([]int, len(s.Bones))
	for newIndex, old := range order {
		remap[old] = newIndex
	}

	bones := make([]*studio.GlobalBone, len(s.Bones))
	for newIndex, old := range order {
		b := s.Bones[old]
		if b.Parent != -1 {
			b.Parent = remap[b.Parent]
		}
		bones[newIndex] = b
	}
	s.Bones = bones
	return nil
}

func cycleError(s *studio.Session, path []int) error {
	last := path[len(path)-1]
	start := 0
	for i, k := range path {
		if k == last {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start)
	for _, k := range path[start:] {
		names = append(names, s.Bones[k].Name)
	}
	return errors.Errorf("Circular bone hierarchy: %s", strings.Join(names, " -> "))
}

// PropagateFlags ors the flags of every bone into all of its ancestors
func PropagateFlags(s *studio.Session) {
	for _, b := range s.Bones {
		for n := b.Parent; n != -1; n = s.Bones[n].Parent {
			s.Bones[n].Flags |= b.Flags
		}
	}
}
