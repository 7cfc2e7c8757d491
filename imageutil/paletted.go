package imageutil

import (
	"image"
	"image/color"

	"github.com/wbrown/imagequant"
)

// PaletteColors converts a quantizer palette into a color.Palette of
// straight-alpha colors, preserving order.
func PaletteColors(p imagequant.Palette) color.Palette {
	out := make(color.Palette, len(p))
	for i, e := range p {
		out[i] = color.NRGBA{R: e.Color.R, G: e.Color.G, B: e.Color.B, A: e.Color.A}
	}
	return out
}

// Paletted converts a remap result into an *image.Paletted ready for
// the standard library's PNG and GIF encoders.
func Paletted(res *imagequant.RemapResult) *image.Paletted {
	img := image.NewPaletted(
		image.Rect(0, 0, res.Width, res.Height),
		PaletteColors(res.Palette),
	)
	// Stride equals width for a zero-origin rectangle, so the index
	// buffer maps one-to-one.
	copy(img.Pix, res.Indices)
	return img
}
