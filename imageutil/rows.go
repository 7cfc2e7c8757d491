// Package imageutil bridges the standard library's image types and the
// quantizer's pixel-row abstraction, and converts remap results back
// into paletted images.
package imageutil

import (
	"image"
	"image/color"

	"github.com/wbrown/imagequant"
)

// ImageRows adapts an image.Image to the quantizer's RowSource
// interface. Pixels are converted to straight-alpha 8-bit RGBA once at
// construction, so Row is a cheap slice view and safe to call from
// multiple goroutines.
type ImageRows struct {
	width, height int
	pix           []imagequant.Color
}

// NewImageRows converts img into a row source. *image.NRGBA and
// *image.RGBA are copied channel-wise; other image types go through
// the color model conversion path.
func NewImageRows(img image.Image) *ImageRows {
	bounds := img.Bounds()
	r := &ImageRows{
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}
	r.pix = make([]imagequant.Color, r.width*r.height)

	switch src := img.(type) {
	case *image.NRGBA:
		r.fromNRGBA(src, bounds)
	case *image.RGBA:
		r.fromRGBA(src, bounds)
	default:
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				r.pix[i] = imagequant.Color{R: c.R, G: c.G, B: c.B, A: c.A}
				i++
			}
		}
	}
	return r
}

func (r *ImageRows) fromNRGBA(src *image.NRGBA, bounds image.Rectangle) {
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, y):]
		for x := 0; x < r.width; x++ {
			p := row[x*4 : x*4+4]
			r.pix[i] = imagequant.Color{R: p[0], G: p[1], B: p[2], A: p[3]}
			i++
		}
	}
}

func (r *ImageRows) fromRGBA(src *image.RGBA, bounds image.Rectangle) {
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, y):]
		for x := 0; x < r.width; x++ {
			p := row[x*4 : x*4+4]
			// RGBA stores premultiplied channels; undo it so the
			// quantizer sees straight alpha.
			a := p[3]
			if a == 0 {
				r.pix[i] = imagequant.Color{}
			} else if a == 255 {
				r.pix[i] = imagequant.Color{R: p[0], G: p[1], B: p[2], A: 255}
			} else {
				r.pix[i] = imagequant.Color{
					R: uint8(uint32(p[0]) * 255 / uint32(a)),
					G: uint8(uint32(p[1]) * 255 / uint32(a)),
					B: uint8(uint32(p[2]) * 255 / uint32(a)),
					A: a,
				}
			}
			i++
		}
	}
}

// Size returns the image dimensions in pixels.
func (r *ImageRows) Size() (width, height int) {
	return r.width, r.height
}

// Row returns row y as a read-only slice of width Colors.
func (r *ImageRows) Row(y int) []imagequant.Color {
	return r.pix[y*r.width : (y+1)*r.width]
}
