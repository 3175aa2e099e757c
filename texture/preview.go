package texture

import (
	"image"
	"image/color"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
)

// Unpack rebuilds the image of a packed skin
func Unpack(data []byte, width, height int) (*image.Paletted, error) {
	if width <= 0 || height <= 0 || len(data) < width*height+256*3 {
		return nil, errors.Errorf("Skin data of %d bytes does not fit %dx%d", len(data), width, height)
	}
	pixels := data[:width*height]
	palData := data[width*height : width*height+256*3]

	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.NRGBA{R: palData[i*3], G: palData[i*3+1], B: palData[i*3+2], A: 0xff}
	}

	img := image.NewPaletted(image.Rect(0, 0, width, height), pal)
	copy(img.Pix, pixels)
	return img, nil
}

// Preview returns what t looks like after packing, with transparent texels
// cleared on masked skins
func Preview(t *studio.Texture) (image.Image, error) {
	img, err := Unpack(t.Data, t.Width, t.Height)
	if err != nil {
		return nil, errors.Wrapf(err, "Texture %q", t.Name)
	}
	if t.Flags&studio.STUDIO_NF_MASKED != 0 {
		img.Palette[TransparentIndex] = color.NRGBA{}
	}
	return img, nil
}

// WritePreview encodes img as lossless WebP
func WritePreview(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return errors.Wrapf(err, "Failed to encode webp")
	}
	return nil
}
