// Package tristrip turns mesh triangles into the strip and fan command lists
// the renderer draws from.
package tristrip

import (
	"github.com/mogaika/studiomdl/3rdparty/half"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

const (
	kindStrip = iota
	kindFan
)

type builder struct {
	tris [][3]studio.TriangleVert
	// per triangle edge: the triangle sharing it and that triangle's edge, -1 for none
	neighborTri  [][3]int
	neighborEdge [][3]int
	used         []int

	verts []int
	order []int
}

func newBuilder(tris [][3]studio.TriangleVert) *builder {
	b := &builder{
		tris:         tris,
		neighborTri:  make([][3]int, len(tris)),
		neighborEdge: make([][3]int, len(tris)),
		used:         make([]int, len(tris)),
	}
	for i := range b.neighborTri {
		b.neighborTri[i] = [3]int{-1, -1, -1}
	}
	for i := range tris {
		for k := 0; k < 3; k++ {
			if b.used[i]&(1<<uint(k)) == 0 {
				b.findNeighbor(i, k)
			}
		}
	}
	for i := range b.used {
		b.used[i] = 0
	}
	return b
}

// findNeighbor links edge v of triangle t with the first later triangle
// that runs the same edge the other way
func (b *builder) findNeighbor(t, v int) {
	m1 := b.tris[t][(v+1)%3]
	m2 := b.tris[t][v]

	for j := t + 1; j < len(b.tris); j++ {
		if b.used[j] == 7 {
			continue
		}
		for k := 0; k < 3; k++ {
			if b.tris[j][k] != m1 || b.tris[j][(k+1)%3] != m2 {
				continue
			}
			b.neighborTri[t][v], b.neighborEdge[t][v] = j, k
			b.neighborTri[j][k], b.neighborEdge[j][k] = t, v
			b.used[t] |= 1 << uint(v)
			b.used[j] |= 1 << uint(k)
			return
		}
	}
}

// walk grows a strip or fan from triangle t starting at vertex v and leaves
// it in b.order and b.verts
func (b *builder) walk(kind, t, v int) int {
	b.used[t] = 2
	b.verts = append(b.verts[:0], v%3, (v+1)%3, (v+2)%3)
	b.order = append(b.order[:0], t, t, t)

	for {
		edge := (v + 2) % 3
		if kind == kindStrip && len(b.verts)&1 != 0 {
			edge = (v + 1) % 3
		}
		j, k := b.neighborTri[t][edge], b.neighborEdge[t][edge]
		if j == -1 || b.used[j] != 0 {
			break
		}
		b.verts = append(b.verts, (k+2)%3)
		b.order = append(b.order, j)
		b.used[j] = 2
		t, v = j, k
	}

	for i, u := range b.used {
		if u == 2 {
			b.used[i] = 0
		}
	}
	return len(b.verts)
}

func (b *builder) command(kind int, order, verts []int) studio.StripCommand {
	cmd := studio.StripCommand{Count: len(order), Verts: make([]studio.TriangleVert, len(order))}
	if kind == kindFan {
		cmd.Count = -cmd.Count
	}
	for i := range order {
		cmd.Verts[i] = b.tris[order[i]][verts[i]]
	}
	return cmd
}

// Build covers every triangle with strips and fans, greedily taking the
// longest run from the first unused triangle on. Ties keep the lowest
// triangle, strips before fans and the lowest start vertex.
func Build(tris [][3]studio.TriangleVert) []studio.StripCommand {
	return build(tris, config.MAX_STRIP_LENGTH)
}

func build(tris [][3]studio.TriangleVert, maxLen int) []studio.StripCommand {
	b := newBuilder(tris)
	peak := make([]int, len(tris))
	for i := range peak {
		peak[i] = len(tris) + 2
	}

	var cmds []studio.StripCommand
	var bestOrder, bestVerts []int
	for i := 0; i < len(tris); {
		if b.used[i] != 0 {
			i++
			continue
		}

		bestLen, bestKind := 0, kindStrip
		for k := i; k < len(tris) && bestLen < maxLen; k++ {
			if b.used[k] != 0 || peak[k] <= bestLen {
				continue
			}
			localPeak := 0
			for _, kind := range []int{kindStrip, kindFan} {
				for v := 0; v < 3; v++ {
					n := b.walk(kind, k, v)
					if n <= maxLen && n > bestLen {
						bestLen, bestKind = n, kind
						bestOrder = append(bestOrder[:0], b.order...)
						bestVerts = append(bestVerts[:0], b.verts...)
					}
					if n > localPeak {
						localPeak = n
					}
				}
			}
			// used triangles only grow, a later start can never do better
			peak[k] = localPeak
		}
		// every run from here is too long, take the triangle alone
		if bestLen == 0 {
			bestKind = kindStrip
			bestOrder = append(bestOrder[:0], i, i, i)
			bestVerts = append(bestVerts[:0], 0, 1, 2)
		}

		for _, t := range bestOrder {
			b.used[t] = 1
		}
		cmds = append(cmds, b.command(bestKind, bestOrder, bestVerts))
	}
	return cmds
}

// Singles keeps every triangle as its own three vertex strip, in input order
func Singles(tris [][3]studio.TriangleVert) []studio.StripCommand {
	cmds := make([]studio.StripCommand, len(tris))
	for i, tri := range tris {
		cmds[i] = studio.StripCommand{Count: 3, Verts: []studio.TriangleVert{tri[0], tri[1], tri[2]}}
	}
	return cmds
}

// OptimizeMeshes fills the strip commands of every mesh in the session
func OptimizeMeshes(s *studio.Session) {
	tris, cmds := 0, 0
	for _, sm := range s.Models {
		for _, mesh := range sm.Meshes {
			if s.Options.NoStrips {
				mesh.Strips = Singles(mesh.Triangles)
			} else {
				mesh.Strips = Build(mesh.Triangles)
			}
			tris += len(mesh.Triangles)
			cmds += len(mesh.Strips)
		}
	}
	if tris != 0 {
		s.Log.Printf("%d triangles in %d strips and fans", tris, cmds)
	}
}

// Covered returns how many times each triangle is drawn by cmds, by index of
// its vertex triple in tris
func Covered(tris [][3]studio.TriangleVert, cmds []studio.StripCommand) []int {
	count := make([]int, len(tris))
	find := func(a, b, c studio.TriangleVert) {
		for i, t := range tris {
			for r := 0; r < 3; r++ {
				if t[r] == a && t[(r+1)%3] == b && t[(r+2)%3] == c {
					count[i]++
					return
				}
			}
		}
	}
	for _, cmd := range cmds {
		v := cmd.Verts
		for j := 2; j < len(v); j++ {
			switch {
			case cmd.Count < 0:
				find(v[0], v[j-1], v[j])
			case j&1 == 0:
				find(v[j-2], v[j-1], v[j])
			default:
				find(v[j-1], v[j-2], v[j])
			}
		}
	}
	return count
}

// Words encodes cmds as the command stream of a mesh: a signed count then
// vertex, normal and two texture coordinates per vertex, closed by a zero.
// Texture coordinates are half float UVs when useUV is set, texel S/T otherwise.
func Words(cmds []studio.StripCommand, useUV bool) []int16 {
	var w []int16
	for _, cmd := range cmds {
		w = append(w, int16(cmd.Count))
		for _, v := range cmd.Verts {
			w = append(w, int16(v.Vert), int16(v.Norm))
			if useUV {
				w = append(w, int16(half.NewFloat16(v.UV[0])), int16(half.NewFloat16(v.UV[1])))
			} else {
				w = append(w, int16(v.S), int16(v.T))
			}
		}
	}
	return append(w, 0)
}
