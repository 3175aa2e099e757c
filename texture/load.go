// Package texture turns skin images into the palettized texel blocks of a
// model and moves mesh texture coordinates into their texel space.
package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	builtinWhite   = "#white.bmp"
	placeholderDim = 64
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Decode reads a TGA, BMP or PNG image. TGA has no magic, so it is the
// fallback for everything else.
func Decode(data []byte) (image.Image, error) {
	var img image.Image
	var err error
	switch {
	case bytes.HasPrefix(data, pngMagic):
		img, err = png.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("BM")):
		img, err = bmp.Decode(bytes.NewReader(data))
	default:
		img, err = tga.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode image")
	}
	return img, nil
}

func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Skin %q", path)
	}
	return img, nil
}

// find returns the first of dirs holding name, or "" when none does
func find(dirs []string, name string) string {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// placeholder stands in for skins that can not be found
func placeholder() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, placeholderDim, placeholderDim))
	for y := 0; y < placeholderDim; y++ {
		for x := 0; x < placeholderDim; x++ {
			c := color.NRGBA{A: 0xff}
			if (x/8+y/8)&1 == 0 {
				c = color.NRGBA{R: 0xff, B: 0xff, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// resample fits img into maxSize by maxSize, keeping sizes that already fit
func resample(img image.Image, maxSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxSize {
		w = maxSize
	}
	if h > maxSize {
		h = maxSize
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}

func hasAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return true
		}
	}
	return false
}

func isBuiltin(name string) bool {
	return strings.EqualFold(name, builtinWhite)
}
