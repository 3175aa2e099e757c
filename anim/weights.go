package anim

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
)

const DefaultWeightlist = "default"

// BuildWeightlists resolves every weightlist against the bone table.
// Weightlists[0] is always the default list: roots weigh 1 and children
// inherit from their parent. Other lists start with roots at 0, children
// take the explicit values of the default list or inherit from their parent.
func BuildWeightlists(s *studio.Session) error {
	if len(s.Weightlists) == 0 || !strings.EqualFold(s.Weightlists[0].Name, DefaultWeightlist) {
		def := s.FindWeightlist(DefaultWeightlist)
		if def == nil {
			def = &studio.Weightlist{Name: DefaultWeightlist}
		}
		lists := []*studio.Weightlist{def}
		for _, wl := range s.Weightlists {
			if wl != def {
				lists = append(lists, wl)
			}
		}
		s.Weightlists = lists
	}

	n := len(s.Bones)
	var explicitDefault []float32
	var explicitDefaultPos []float32
	for i, wl := range s.Weightlists {
		wl.Weight = make([]float32, n)
		wl.PosWeight = make([]float32, n)
		for k, b := range s.Bones {
			switch {
			case b.Parent != -1 && i == 0:
				wl.Weight[k] = -1
			case b.Parent != -1:
				wl.Weight[k] = explicitDefault[k]
				wl.PosWeight[k] = explicitDefaultPos[k]
			case i == 0:
				wl.Weight[k] = 1
				wl.PosWeight[k] = 1
			}
		}

		for _, wb := range wl.Bones {
			k := s.FindBone(wb.Name)
			if k == -1 {
				return errors.Errorf("Unknown bone reference %q in weightlist %q", wb.Name, wl.Name)
			}
			wl.Weight[k] = wb.Weight
			wl.PosWeight[k] = wb.PosWeight
		}

		if i == 0 {
			explicitDefault = append([]float32(nil), wl.Weight...)
			explicitDefaultPos = append([]float32(nil), wl.PosWeight...)
		}
	}

	for _, wl := range s.Weightlists {
		for k, b := range s.Bones {
			if wl.Weight[k] < 0 && b.Parent != -1 {
				wl.Weight[k] = wl.Weight[b.Parent]
				wl.PosWeight[k] = wl.PosWeight[b.Parent]
			}
		}
	}
	return nil
}

func setWeights(a *studio.Animation, wl *studio.Weightlist) {
	a.Weight = append(a.Weight[:0], wl.Weight...)
	a.PosWeight = append(a.PosWeight[:0], wl.PosWeight...)
}

// MergeSequenceWeights sets the weight of every sequence bone to the largest
// weight that bone has in any blend of the sequence
func MergeSequenceWeights(s *studio.Session) {
	for _, seq := range s.Sequences {
		seq.Weight = make([]float32, len(s.Bones))
		for _, a := range seq.Anims {
			for k := range seq.Weight {
				if w := a.Weight[k]; w > seq.Weight[k] {
					seq.Weight[k] = w
				}
			}
		}
	}
}
