package imagequant

import "sort"

// PaletteEntry is one palette color together with its popularity: the
// summed histogram weight of every color assigned to it. Popularity is
// used for tie-breaking, for ordering the final palette, and as an
// importance signal during refinement.
type PaletteEntry struct {
	Color      Color
	Popularity uint64
}

// Palette is an ordered sequence of palette entries. Order matters for
// output (downstream encoders index into it) but not for correctness
// of nearest-neighbor search. The refiner replaces the palette
// wholesale each iteration rather than mutating entries in place.
type Palette []PaletteEntry

// Colors returns just the colors of the palette, in order.
func (p Palette) Colors() []Color {
	colors := make([]Color, len(p))
	for i, e := range p {
		colors[i] = e.Color
	}
	return colors
}

// perceptual projects every palette color into the metric space.
func (p Palette) perceptual() []PerceptualColor {
	out := make([]PerceptualColor, len(p))
	for i, e := range p {
		out[i] = e.Color.Perceptual()
	}
	return out
}

// sortByPopularity orders the palette most-popular first. Ties are
// broken on the packed channel value so repeated runs produce
// bit-identical output.
func (p Palette) sortByPopularity() {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Popularity != p[j].Popularity {
			return p[i].Popularity > p[j].Popularity
		}
		return p[i].Color.key() < p[j].Color.key()
	})
}

// key packs the channels into a single comparable value.
func (c Color) key() uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
