package anim

import (
	"fmt"

	"github.com/mogaika/studiomdl/studio"
)

// size of the per bone channel offset block of one blend in the output
const animOffsetsSize = 6 * 2

// SequenceSize is what the animation data of seq takes in the output
func SequenceSize(s *studio.Session, seq *studio.Sequence) int {
	size := seq.NumBlends() * len(s.Bones) * animOffsetsSize
	for _, a := range seq.Anims {
		size += ChannelsSize(a)
	}
	return size
}

// GroupFileName is the path group stores for satellite file number group
func GroupFileName(s *studio.Session, group int) string {
	return fmt.Sprintf("models\\%s%02d.mdl", s.Name, group)
}

// AssignSequenceGroups moves the animation data of sequences without an activity
// into satellite files once the total goes past the configured budget.
// Sequences keep their source order and a group is closed when the next
// sequence would not fit.
func AssignSequenceGroups(s *studio.Session) {
	if len(s.SeqGroups) == 0 {
		s.SeqGroups = append(s.SeqGroups, &studio.SeqGroup{Label: "default"})
	}
	for i, g := range s.SeqGroups[1:] {
		if g.Name == "" {
			g.Name = GroupFileName(s, i+1)
		}
	}

	budget := s.Options.SequenceGroupSize
	if budget <= 0 || len(s.SeqGroups) > 1 {
		return
	}

	total := 0
	for _, seq := range s.Sequences {
		total += SequenceSize(s, seq)
	}
	if total <= budget {
		return
	}

	current := 0
	for _, seq := range s.Sequences {
		if seq.Activity != 0 {
			seq.Group = 0
			continue
		}
		size := SequenceSize(s, seq)
		if len(s.SeqGroups) == 1 || (current != 0 && current+size > budget) {
			n := len(s.SeqGroups)
			s.SeqGroups = append(s.SeqGroups, &studio.SeqGroup{
				Label: fmt.Sprintf("%s%02d", s.Name, n),
				Name:  GroupFileName(s, n),
			})
			current = size
		} else {
			current += size
		}
		seq.Group = len(s.SeqGroups) - 1
	}
	s.Log.Printf("animations split into %d sequence groups", len(s.SeqGroups))
}
