package texture

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

const chromeSize = 64

type packer struct {
	s *studio.Session
	// sticky once any mesh maps outside 0..1
	clip bool
}

// Grab loads, resamples and quantizes the image of t
func Grab(s *studio.Session, t *studio.Texture) error {
	if s.Options.StoreUV && t.Flags&studio.STUDIO_NF_CHROME == 0 {
		t.Flags |= studio.STUDIO_NF_UV_COORDS
	}

	var src image.Image
	if isBuiltin(t.Name) {
		src = solid(8, 8, color.White)
	} else if path := find(s.TextureDirs, t.Name); path == "" {
		s.Log.Warnf("skin %q not found, using a placeholder", t.Name)
		src = placeholder()
	} else {
		var err error
		if src, err = Load(path); err != nil {
			return err
		}
	}

	maxSize := config.MAX_TEXTURE_SIZE
	if s.Options.StoreUV {
		maxSize = config.MAX_TEXTURE_UV_SIZE
	}
	img := resample(src, maxSize)

	var cutoff uint8
	if t.Flags&studio.STUDIO_NF_MASKED != 0 && hasAlpha(img) {
		cutoff = uint8(math.Round(float64(s.Options.AlphaThreshold) * 255))
		if cutoff == 0 {
			cutoff = 1
		}
	}
	t.Image = Quantize(img, cutoff)
	return nil
}

func roundTexel(coord float32) int {
	f := math.Floor(float64(coord))
	if float64(coord)-f > 0.5 {
		return int(math.Ceil(float64(coord)))
	}
	return int(f)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapAxis shifts whole triangles by one texture repeat until the covered
// range of axis can not shrink any more
func wrapAxis(tris [][3]studio.TriangleVert, axis int) {
	if len(tris) == 0 {
		return
	}
	for {
		minV, maxV := float32(9999), float32(-9999)
		kMax, nMin := float32(-9999), float32(9999)
		k, n := -1, -1

		for i := range tris {
			lo := tris[i][0].UV[axis]
			hi := lo
			for j := 1; j < 3; j++ {
				lo = float32(math.Min(float64(lo), float64(tris[i][j].UV[axis])))
				hi = float32(math.Max(float64(hi), float64(tris[i][j].UV[axis])))
			}
			if lo < minV {
				minV, kMax, k = lo, hi, i
			}
			if hi > maxV {
				maxV, nMin, n = hi, lo, i
			}
		}

		switch {
		case kMax+1 < maxV:
			for j := 0; j < 3; j++ {
				tris[k][j].UV[axis] += 1
			}
		case nMin-1 > minV:
			for j := 0; j < 3; j++ {
				tris[n][j].UV[axis] -= 1
			}
		default:
			return
		}
	}
}

// coordRanges converts the UVs of mesh into texels of t and grows the used texel range
func (p *packer) coordRanges(mesh *studio.SourceMesh, t *studio.Texture) {
	tris := mesh.Triangles
	if t.Flags&studio.STUDIO_NF_CHROME != 0 {
		for i := range tris {
			for j := 0; j < 3; j++ {
				tris[i][j].S, tris[i][j].T = 0, 0
			}
		}
		if len(tris) != 0 {
			t.MinS, t.MaxS, t.MinT, t.MaxT = 0, chromeSize-1, 0, chromeSize-1
		}
		return
	}

	if !p.clip && p.s.Options.AllowTiling {
	scan:
		for i := range tris {
			for j := 0; j < 3; j++ {
				uv := tris[i][j].UV
				if uv[0] < 0 || uv[0] > 1 || uv[1] < 0 || uv[1] > 1 {
					p.clip = true
					p.s.Log.Printf("UV mapping of %s is out of range 0-1, texture clipping enabled", t.Name)
					break scan
				}
			}
		}
	}

	if !p.clip {
		for i := range tris {
			for j := 0; j < 3; j++ {
				tris[i][j].UV[0] = clamp(tris[i][j].UV[0], -3, 4)
				tris[i][j].UV[1] = clamp(tris[i][j].UV[1], -3, 4)
			}
		}
		wrapAxis(tris, 0)
		wrapAxis(tris, 1)
	} else if !p.s.Options.AllowTiling {
		for i := range tris {
			for j := 0; j < 3; j++ {
				tris[i][j].UV[0] = clamp(tris[i][j].UV[0], 0, 1)
				tris[i][j].UV[1] = clamp(tris[i][j].UV[1], 0, 1)
			}
		}
	}

	w, h := t.Image.Bounds().Dx(), t.Image.Bounds().Dy()
	for i := range tris {
		for j := 0; j < 3; j++ {
			tris[i][j].S = roundTexel(tris[i][j].UV[0] * float32(w))
			tris[i][j].T = roundTexel(tris[i][j].UV[1] * float32(h))
		}
	}

	if p.clip {
		t.MinS, t.MaxS, t.MinT, t.MaxT = 0, w-1, 0, h-1
		return
	}
	for i := range tris {
		for j := 0; j < 3; j++ {
			v := tris[i][j]
			t.MinS, t.MaxS = min(t.MinS, v.S), max(t.MaxS, v.S)
			t.MinT, t.MaxT = min(t.MinT, v.T), max(t.MaxT, v.T)
		}
	}
}

// resize cuts the used texel range out of the skin, wrapping where the range
// runs past the image, and appends the palette
func resize(s *studio.Session, t *studio.Texture) error {
	src := t.Image
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()

	t.Width = (t.MaxS - t.MinS + 1 + 3) &^ 3
	t.Height = t.MaxT - t.MinT + 1
	size := t.Width*t.Height + 256*3
	if size > config.MAX_SKIN_BYTES {
		return errors.Errorf("Texture %q too large (%d %d %d %d)", t.Name, t.MinS, t.MaxS, t.MinT, t.MaxT)
	}
	if srcW != 0 {
		s.Log.Printf("%s [%d %d] (%.0f%%) %6d bytes", t.Name, t.Width, t.Height,
			float32(t.Width*t.Height)/float32(srcW*srcH)*100, size)
	}

	data := make([]byte, 0, size)
	row := srcH - t.Height - t.MinT + 10*srcH
	for i := 0; i < t.Height; i++ {
		y := ((row+i)%srcH + srcH) % srcH
		for j := 0; j < t.Width; j++ {
			x := ((t.MinS+10*srcW+j)%srcW + srcW) % srcW
			data = append(data, src.Pix[y*src.Stride+x])
		}
	}
	t.Data = append(data, PaletteBytes(src.Palette)...)
	return nil
}

// resetCoords makes texel coordinates relative to the packed skin, T pointing up
func (p *packer) resetCoords(mesh *studio.SourceMesh, t *studio.Texture) {
	for i := range mesh.Triangles {
		for j := 0; j < 3; j++ {
			v := &mesh.Triangles[i][j]
			v.S -= t.MinS
			if p.clip {
				v.T = (t.MaxT + 1 - t.MinT) - (v.T - t.MinT)
			} else {
				v.T = (t.MaxT - t.MinT) - (v.T - t.MinT)
			}
			if p.s.Options.StoreUV {
				v.UV[1] = 1 - v.UV[1]
			}
		}
	}
}

// PackSkins loads every skin, converts mesh coordinates to texels and packs
// each skin down to the texels its meshes use.
func PackSkins(s *studio.Session) error {
	p := &packer{s: s, clip: s.Options.ClipTexCoords}

	for _, t := range s.Textures {
		if err := Grab(s, t); err != nil {
			return errors.Wrapf(err, "Failed to load skin %q", t.Name)
		}
		t.MinS, t.MaxS = math.MaxInt32, math.MinInt32
		t.MinT, t.MaxT = math.MaxInt32, math.MinInt32
	}

	for _, sm := range s.Models {
		for _, mesh := range sm.Meshes {
			p.coordRanges(mesh, s.Textures[mesh.Skin])
		}
	}

	for _, t := range s.Textures {
		if t.MaxS < t.MinS {
			switch {
			case t.Flags&studio.STUDIO_NF_CHROME != 0:
				t.MinS, t.MaxS, t.MinT, t.MaxT = 0, chromeSize-1, 0, chromeSize-1
			case t.Parent != -1 && s.Textures[t.Parent].MaxS >= s.Textures[t.Parent].MinS:
				parent := s.Textures[t.Parent]
				t.MinS, t.MaxS, t.MinT, t.MaxT = parent.MinS, parent.MaxS, parent.MinT, parent.MaxT
			default:
				t.MinS, t.MaxS = 0, t.Image.Bounds().Dx()-1
				t.MinT, t.MaxT = 0, t.Image.Bounds().Dy()-1
			}
		}
		if err := resize(s, t); err != nil {
			return err
		}
	}

	for _, sm := range s.Models {
		for _, mesh := range sm.Meshes {
			p.resetCoords(mesh, s.Textures[mesh.Skin])
		}
	}

	finishFamilies(s)
	return nil
}
