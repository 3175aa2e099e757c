package tristrip

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/3rdparty/half"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func tv(n int) studio.TriangleVert {
	return studio.TriangleVert{Vert: n, Norm: n, S: n * 2, T: n * 3}
}

func tri(a, b, c int) [3]studio.TriangleVert {
	return [3]studio.TriangleVert{tv(a), tv(b), tv(c)}
}

// w by h quads with consistent winding
func grid(w, h int) [][3]studio.TriangleVert {
	var tris [][3]studio.TriangleVert
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := y*(w+1) + x
			b, c := a+1, a+w+1
			d := c + 1
			tris = append(tris, tri(a, b, c), tri(c, b, d))
		}
	}
	return tris
}

func assertCoverage(t *testing.T, tris [][3]studio.TriangleVert, cmds []studio.StripCommand) {
	for i, n := range Covered(tris, cmds) {
		assert.Equal(t, 1, n, "triangle %d", i)
	}
	total := 0
	for _, cmd := range cmds {
		l := cmd.Count
		if l < 0 {
			l = -l
		}
		assert.Equal(t, l, len(cmd.Verts))
		assert.LessOrEqual(t, l, config.MAX_STRIP_LENGTH)
		total += l - 2
	}
	assert.Equal(t, len(tris), total)
}

func TestQuadIsOneStrip(t *testing.T) {
	tris := []([3]studio.TriangleVert){tri(0, 1, 2), tri(2, 1, 3)}
	cmds := Build(tris)
	require.Len(t, cmds, 1)
	assert.Equal(t, 4, cmds[0].Count)
	assert.Equal(t, []studio.TriangleVert{tv(0), tv(1), tv(2), tv(3)}, cmds[0].Verts)
	assertCoverage(t, tris, cmds)
}

func TestFanAroundSharedVertex(t *testing.T) {
	tris := [][3]studio.TriangleVert{tri(0, 1, 2), tri(0, 2, 3), tri(0, 3, 4), tri(0, 4, 5)}
	cmds := Build(tris)
	require.Len(t, cmds, 1)
	assert.Equal(t, -6, cmds[0].Count)
	assert.Equal(t, tv(0), cmds[0].Verts[0])
	assertCoverage(t, tris, cmds)
}

func TestDifferentUVsDoNotConnect(t *testing.T) {
	tris := [][3]studio.TriangleVert{tri(0, 1, 2), tri(2, 1, 3)}
	tris[1][1].UV = mgl32.Vec2{0.5, 0.5}
	cmds := Build(tris)
	require.Len(t, cmds, 2)
	assertCoverage(t, tris, cmds)
}

func TestGridCoverage(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 2}, {5, 5}, {8, 3}} {
		tris := grid(size[0], size[1])
		assertCoverage(t, tris, Build(tris))
	}
}

func TestLongRowIsCapped(t *testing.T) {
	tris := grid(100, 1)
	cmds := Build(tris)
	assert.Greater(t, len(cmds), 1)
	assertCoverage(t, tris, cmds)
}

func TestBuildFallsBackToSingleTriangles(t *testing.T) {
	tris := grid(2, 2)
	cmds := build(tris, 2)
	require.Len(t, cmds, len(tris))
	for i, cmd := range cmds {
		assert.Equal(t, 3, cmd.Count)
		assert.Equal(t, []studio.TriangleVert{tris[i][0], tris[i][1], tris[i][2]}, cmd.Verts)
	}
	assertCoverage(t, tris, cmds)
}

func TestSingles(t *testing.T) {
	tris := grid(2, 2)
	cmds := Singles(tris)
	require.Len(t, cmds, len(tris))
	for i, cmd := range cmds {
		assert.Equal(t, 3, cmd.Count)
		assert.Equal(t, tris[i][:], cmd.Verts)
	}
	assertCoverage(t, tris, cmds)
}

func TestWords(t *testing.T) {
	tris := []([3]studio.TriangleVert){tri(0, 1, 2), tri(2, 1, 3)}
	cmds := Build(tris)

	w := Words(cmds, false)
	require.Len(t, w, 1+4*4+1)
	assert.Equal(t, int16(4), w[0])
	assert.Equal(t, []int16{1, 1, 2, 3}, w[5:9])
	assert.Equal(t, int16(0), w[len(w)-1])

	cmds[0].Verts[0].UV = mgl32.Vec2{0.5, 1}
	w = Words(cmds, true)
	assert.Equal(t, int16(half.NewFloat16(0.5)), w[3])
	assert.Equal(t, int16(half.NewFloat16(1)), w[4])
}

func TestOptimizeMeshes(t *testing.T) {
	var log bytes.Buffer
	s := studio.NewSession("grid", *config.DefaultOptions())
	s.Log = utils.NewLogger(&log)
	mesh := &studio.SourceMesh{Triangles: grid(2, 2)}
	s.Models = []*studio.SourceModel{{Name: "grid", Meshes: []*studio.SourceMesh{mesh}}}

	OptimizeMeshes(s)
	assertCoverage(t, mesh.Triangles, mesh.Strips)
	assert.Contains(t, log.String(), "8 triangles")

	s.Options.NoStrips = true
	OptimizeMeshes(s)
	assert.Len(t, mesh.Strips, 8)
}
