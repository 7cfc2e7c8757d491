package imagequant

import (
	"math"
)

// Color represents a color with 8-bit red, green, blue, and alpha
// channels. Alpha is straight (non-premultiplied) at the API boundary;
// the quantizer premultiplies internally before measuring distances so
// that fully transparent pixels with different RGB noise compare as
// identical.
type Color struct {
	R, G, B, A uint8
}

// PerceptualColor is a Color projected into the space the distance
// metric operates in: gamma-corrected, alpha-premultiplied float32
// channels in [0, 1]. It is derived on demand and never stored past a
// scan of the image.
type PerceptualColor struct {
	R, G, B, A float32
}

// internalGamma is the exponent applied to the 8-bit channels before
// distance computation. Differences in dark tones matter more to the
// eye than the same numeric difference in highlights.
const internalGamma = 2.2

// Channel weights for the distance metric. Alpha carries more weight
// than any single RGB channel so that an opacity mismatch is always
// penalized harder than a hue mismatch.
const (
	weightRed   = 0.299
	weightGreen = 0.587
	weightBlue  = 0.114
	weightAlpha = 1.5
)

// maxDistance is the metric distance between two maximally different
// colors, used to normalize distortion into a [0, 1] quality figure.
const maxDistance = weightRed + weightGreen + weightBlue + weightAlpha

var gammaLUT [256]float32

func init() {
	for i := range gammaLUT {
		gammaLUT[i] = float32(math.Pow(float64(i)/255.0, internalGamma))
	}
}

// Perceptual converts a Color into the metric space. The conversion
// applies the gamma lookup table to each RGB channel and premultiplies
// the result by alpha.
func (c Color) Perceptual() PerceptualColor {
	a := float32(c.A) / 255.0
	return PerceptualColor{
		R: gammaLUT[c.R] * a,
		G: gammaLUT[c.G] * a,
		B: gammaLUT[c.B] * a,
		A: a,
	}
}

// Color converts a PerceptualColor back to an 8-bit Color, undoing the
// premultiplication and gamma correction. Channels are clamped to the
// representable range, so converting the centroid of a box of valid
// colors always yields a valid color.
func (p PerceptualColor) Color() Color {
	if p.A <= 0 {
		return Color{}
	}
	inv := 1.0 / float64(p.A)
	return Color{
		R: delinearize(float64(p.R) * inv),
		G: delinearize(float64(p.G) * inv),
		B: delinearize(float64(p.B) * inv),
		A: uint8(clamp(float64(p.A)*255.0+0.5, 0, 255)),
	}
}

// delinearize maps a linear [0, 1] channel back to its 8-bit
// gamma-encoded value.
func delinearize(v float64) uint8 {
	return uint8(clamp(math.Pow(clamp(v, 0, 1), 1.0/internalGamma)*255.0+0.5, 0, 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ColorDistance returns the weighted squared difference between two
// perceptual colors. It is symmetric, zero only for equal inputs, and
// has no side effects, so it is safe to call concurrently.
func ColorDistance(a, b PerceptualColor) float32 {
	dr := a.R - b.R
	dg := a.G - b.G
	db := a.B - b.B
	da := a.A - b.A
	return weightRed*dr*dr + weightGreen*dg*dg + weightBlue*db*db + weightAlpha*da*da
}
