package anim

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
)

func findNode(s *studio.Session, name string) int {
	for i, n := range s.Nodes {
		if strings.EqualFold(n, name) {
			return i + 1
		}
	}
	return 0
}

// MakeTransitions builds the node graph: XNode[from-1][to-1] is the node to
// go through next on the way from node from to node to, 0 when unreachable
func MakeTransitions(s *studio.Session) error {
	n := len(s.Nodes)
	for _, seq := range s.Sequences {
		if seq.EntryNode > n {
			n = seq.EntryNode
		}
		if seq.ExitNode > n {
			n = seq.ExitNode
		}
	}
	xnode := make([][]int, n)
	for i := range xnode {
		xnode[i] = make([]int, n)
	}

	for _, seq := range s.Sequences {
		if seq.EntryNode == 0 || seq.ExitNode == 0 || seq.EntryNode == seq.ExitNode {
			continue
		}
		xnode[seq.EntryNode-1][seq.ExitNode-1] = seq.ExitNode
		if seq.NodeFlags&studio.NODE_REVERSE != 0 {
			xnode[seq.ExitNode-1][seq.EntryNode-1] = seq.EntryNode
		}
	}

	// links found in a pass are negative so they are only used from the next pass on
	for hit := s.MultiStageTransitions; hit; {
		hit = false
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j || xnode[i][j] != 0 {
					continue
				}
				for k := 0; k < n; k++ {
					if xnode[k][j] > 0 && xnode[i][k] > 0 {
						xnode[i][j] = -xnode[i][k]
						hit = true
						break
					}
				}
			}
		}
		for i := range xnode {
			for j, v := range xnode[i] {
				if v < 0 {
					xnode[i][j] = -v
				}
			}
		}
	}

	for _, skip := range s.Transitions {
		from, to := findNode(s, skip.Entry), findNode(s, skip.Exit)
		if from == 0 || to == 0 {
			return errors.Errorf("Unknown transition node in skip %q -> %q", skip.Entry, skip.Exit)
		}
		xnode[from-1][to-1] = 0
	}

	s.XNode = xnode
	return nil
}
