package texture

import (
	"image"
	"image/color"
	"sort"
)

// TransparentIndex is the palette slot masked skins use for see-through texels
const TransparentIndex = 255

var transparentColor = color.NRGBA{B: 0xff, A: 0xff}

func colorKey(c color.NRGBA) uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

// Quantize builds a 256 colour palette of the most used colours of img and
// maps every texel to its closest entry. With cutoff above zero texels whose
// alpha is below it go to TransparentIndex and the palette keeps that slot.
func Quantize(img *image.NRGBA, cutoff uint8) *image.Paletted {
	type clrCounter struct {
		key    uint32
		c      color.NRGBA
		counts int
	}

	b := img.Bounds()
	seen := make(map[uint32]int)
	counter := make([]clrCounter, 0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.A < cutoff {
				continue
			}
			c.A = 0xff
			key := colorKey(c)
			if i, ok := seen[key]; ok {
				counter[i].counts++
			} else {
				seen[key] = len(counter)
				counter = append(counter, clrCounter{key: key, c: c, counts: 1})
			}
		}
	}
	sort.Slice(counter, func(i, j int) bool {
		if counter[i].counts != counter[j].counts {
			return counter[i].counts > counter[j].counts
		}
		return counter[i].key < counter[j].key
	})

	colors := 256
	if cutoff > 0 {
		colors = TransparentIndex
	}
	pal := make(color.Palette, 256)
	for i := range pal {
		switch {
		case i < len(counter) && i < colors:
			pal[i] = counter[i].c
		case len(counter) != 0:
			pal[i] = counter[len(counter)-1].c
		default:
			pal[i] = color.NRGBA{A: 0xff}
		}
	}
	if cutoff > 0 {
		pal[TransparentIndex] = transparentColor
	}
	search := pal[:colors]

	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	cache := make(map[uint32]uint8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			var idx uint8
			if c.A < cutoff {
				idx = TransparentIndex
			} else {
				c.A = 0xff
				key := colorKey(c)
				var ok bool
				if idx, ok = cache[key]; !ok {
					idx = uint8(search.Index(c))
					cache[key] = idx
				}
			}
			dst.SetColorIndex(x-b.Min.X, y-b.Min.Y, idx)
		}
	}
	return dst
}

// PaletteBytes packs pal as 256 RGB triplets
func PaletteBytes(pal color.Palette) []byte {
	r := make([]byte, 256*3)
	for i := 0; i < 256 && i < len(pal); i++ {
		c := color.NRGBAModel.Convert(pal[i]).(color.NRGBA)
		r[i*3+0] = c.R
		r[i*3+1] = c.G
		r[i*3+2] = c.B
	}
	return r
}
