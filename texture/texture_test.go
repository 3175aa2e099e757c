package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
)

// 16x8, left half red and right half green
func halves() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			if x < 8 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, green)
			}
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func uvTri(a, b, c mgl32.Vec2) [3]studio.TriangleVert {
	return [3]studio.TriangleVert{{Vert: 0, UV: a}, {Vert: 1, UV: b}, {Vert: 2, UV: c}}
}

func skinSession(t *testing.T, dir string, tris ...[3]studio.TriangleVert) (*studio.Session, *studio.SourceMesh) {
	s := studio.NewSession("skin", *config.DefaultOptions())
	s.TextureDirs = []string{dir}
	mesh := &studio.SourceMesh{Material: 0, Triangles: tris}
	sm := &studio.SourceModel{Name: "body", Materials: []string{"halves.png"}, Meshes: []*studio.SourceMesh{mesh}}
	require.NoError(t, s.AddModel(sm))
	require.NoError(t, LinkModel(s, sm))
	return s, mesh
}

func TestDecodeFormats(t *testing.T) {
	for _, tc := range []struct {
		name   string
		encode func(w *bytes.Buffer, img image.Image) error
	}{
		{"png", func(w *bytes.Buffer, img image.Image) error { return png.Encode(w, img) }},
		{"bmp", func(w *bytes.Buffer, img image.Image) error { return bmp.Encode(w, img) }},
		{"tga", func(w *bytes.Buffer, img image.Image) error { return tga.Encode(w, img) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tc.encode(&buf, halves()))

			img, err := Decode(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
			assert.Equal(t, red, color.NRGBAModel.Convert(img.At(1, 1)))
			assert.Equal(t, green, color.NRGBAModel.Convert(img.At(14, 6)))
		})
	}

	_, err := Decode([]byte("\x89PNG\r\n\x1a\nbroken"))
	assert.Error(t, err)
}

func TestQuantize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, red)
	img.SetNRGBA(0, 1, red)
	img.SetNRGBA(1, 1, green)

	p := Quantize(img, 0)
	assert.Equal(t, uint8(0), p.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(1), p.ColorIndexAt(1, 1))
	assert.Len(t, p.Palette, 256)

	img.SetNRGBA(1, 1, color.NRGBA{G: 0xff, A: 0x10})
	p = Quantize(img, 0x80)
	assert.Equal(t, uint8(TransparentIndex), p.ColorIndexAt(1, 1))
	assert.Equal(t, transparentColor, p.Palette[TransparentIndex])
}

func TestPackSkins(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "halves.png", halves())

	s, mesh := skinSession(t, dir, uvTri(mgl32.Vec2{0, 0}, mgl32.Vec2{0.5, 0}, mgl32.Vec2{0, 1}))
	require.NoError(t, PackSkins(s))

	tex := s.Textures[0]
	assert.Equal(t, 12, tex.Width)
	assert.Equal(t, 9, tex.Height)
	assert.Len(t, tex.Data, 12*9+256*3)

	tri := mesh.Triangles[0]
	assert.Equal(t, []int{0, 8, 0}, []int{tri[0].S, tri[1].S, tri[2].S})
	assert.Equal(t, []int{8, 8, 0}, []int{tri[0].T, tri[1].T, tri[2].T})

	assert.Equal(t, [][]int{{0}}, s.SkinFamilies)
	assert.Equal(t, 1, s.NumSkinRef)
}

func TestPackSkinsWrapsTiledTriangles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "halves.png", halves())

	s, mesh := skinSession(t, dir,
		uvTri(mgl32.Vec2{0, 0}, mgl32.Vec2{0.25, 0}, mgl32.Vec2{0, 0.5}),
		uvTri(mgl32.Vec2{2, 0}, mgl32.Vec2{2.25, 0}, mgl32.Vec2{2, 0.5}),
	)
	require.NoError(t, PackSkins(s))
	// the lower triangle moves one repeat up, the range can not shrink further
	assert.InDelta(t, 1, mesh.Triangles[0][0].UV[0], 1e-6)
	assert.InDelta(t, 2, mesh.Triangles[1][0].UV[0], 1e-6)
	assert.Equal(t, 16, s.Textures[0].MinS)
	assert.Equal(t, 36, s.Textures[0].MaxS)
	assert.Equal(t, 24, s.Textures[0].Width)
}

func TestPackSkinsMissingImage(t *testing.T) {
	var log bytes.Buffer
	s, _ := skinSession(t, t.TempDir(), uvTri(mgl32.Vec2{0, 0}, mgl32.Vec2{1, 0}, mgl32.Vec2{0, 1}))
	s.Log = utils.NewLogger(&log)
	require.NoError(t, PackSkins(s))
	assert.Contains(t, log.String(), "not found")
	assert.Equal(t, placeholderDim, s.Textures[0].Image.Bounds().Dx())
}

func TestChromeTexture(t *testing.T) {
	s := studio.NewSession("chrome", *config.DefaultOptions())
	s.Options.StoreUV = true
	k, err := s.AddTexture("gun_chrome.bmp")
	require.NoError(t, err)
	tex := s.Textures[k]
	assert.NotZero(t, tex.Flags&studio.STUDIO_NF_CHROME)

	require.NoError(t, Grab(s, tex))
	assert.Zero(t, tex.Flags&studio.STUDIO_NF_UV_COORDS)

	other, err := s.AddTexture("#white.bmp")
	require.NoError(t, err)
	require.NoError(t, Grab(s, s.Textures[other]))
	assert.NotZero(t, s.Textures[other].Flags&studio.STUDIO_NF_UV_COORDS)
}

func TestRenderModeAndGroups(t *testing.T) {
	s := studio.NewSession("groups", *config.DefaultOptions())
	require.Error(t, AddGroup(s, [][]string{{"a"}}))

	sm := &studio.SourceModel{
		Name:      "body",
		Materials: []string{"a.bmp", "b.bmp"},
		Meshes:    []*studio.SourceMesh{{Material: 0}, {Material: 1}},
	}
	require.NoError(t, LinkModel(s, sm))
	assert.Equal(t, []int{0, 1}, []int{sm.Meshes[0].Skin, sm.Meshes[1].Skin})

	require.NoError(t, SetRenderMode(s, "b.bmp", "masked"))
	assert.NotZero(t, s.Textures[1].Flags&studio.STUDIO_NF_MASKED)

	require.NoError(t, AddGroup(s, [][]string{{"a.bmp"}, {"c.bmp"}}))
	assert.Equal(t, [][]int{{0, 1}, {2, 1}}, s.SkinFamilies)
	assert.Equal(t, 0, s.Textures[2].Parent)
	assert.Equal(t, 2, s.NumSkinRef)

	assert.Error(t, AddGroup(s, [][]string{{"a.bmp", "b.bmp"}, {"c.bmp"}}))
}

func TestUnpackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "halves.png", halves())
	s, _ := skinSession(t, dir, uvTri(mgl32.Vec2{0, 0}, mgl32.Vec2{1, 0}, mgl32.Vec2{0, 1}))
	require.NoError(t, PackSkins(s))

	tex := s.Textures[0]
	img, err := Preview(tex)
	require.NoError(t, err)
	assert.Equal(t, tex.Width, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, img))
	assert.Equal(t, "RIFF", buf.String()[:4])

	_, err = Unpack(tex.Data[:10], tex.Width, tex.Height)
	assert.Error(t, err)
}
