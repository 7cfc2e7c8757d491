package imagequant

import "sort"

// cutEntry is a histogram entry flattened for median-cut: the builder
// sorts these along channel axes, which must not disturb the
// histogram's own entry order.
type cutEntry struct {
	color  PerceptualColor
	weight uint32
}

// cutBox is a contiguous range of cutEntry values with cached weighted
// statistics. splitOrder records when the box was created so equal
// variance and equal weight still break ties deterministically.
type cutBox struct {
	begin, end int
	weight     uint64
	axis       int
	variance   float64
	splitOrder int
}

// axisValue returns the channel of c selected by axis, in the fixed
// order red, green, blue, alpha.
func axisValue(c PerceptualColor, axis int) float32 {
	switch axis {
	case 0:
		return c.R
	case 1:
		return c.G
	case 2:
		return c.B
	default:
		return c.A
	}
}

// BuildInitialPalette partitions the histogram into at most k boxes by
// recursive weighted-median splits and returns one palette entry per
// box. The result is deterministic: given the same histogram and k,
// repeated runs produce bit-identical palettes.
//
// If the histogram holds fewer than k unique colors the palette is
// sized to the unique-color count instead of being padded.
func BuildInitialPalette(h *Histogram, k int) Palette {
	if k > h.Len() {
		k = h.Len()
	}
	if k <= 0 {
		return nil
	}

	entries := make([]cutEntry, h.Len())
	for i, e := range h.entries {
		entries[i] = cutEntry{color: e.color, weight: e.weight}
	}

	boxes := make([]cutBox, 0, k)
	boxes = append(boxes, measureBox(entries, 0, len(entries), 0))

	order := 1
	for len(boxes) < k {
		best := pickSplitBox(boxes)
		if best < 0 {
			break
		}
		b := boxes[best]
		left, right := splitBox(entries, b, order, order+1)
		order += 2
		boxes[best] = left
		boxes = append(boxes, right)
	}

	pal := make(Palette, len(boxes))
	for i, b := range boxes {
		centroid, weight := boxCentroid(entries, b)
		pal[i] = PaletteEntry{Color: centroid.Color(), Popularity: weight}
	}
	return pal
}

// measureBox computes the weighted variance of each channel across the
// range and records the dominant axis.
func measureBox(entries []cutEntry, begin, end, order int) cutBox {
	b := cutBox{begin: begin, end: end, splitOrder: order}

	var sum, sumSq [4]float64
	for _, e := range entries[begin:end] {
		w := float64(e.weight)
		b.weight += uint64(e.weight)
		for axis := 0; axis < 4; axis++ {
			v := float64(axisValue(e.color, axis))
			sum[axis] += w * v
			sumSq[axis] += w * v * v
		}
	}
	if b.weight == 0 {
		return b
	}
	total := float64(b.weight)
	for axis := 0; axis < 4; axis++ {
		variance := sumSq[axis] - sum[axis]*sum[axis]/total
		if variance > b.variance {
			b.variance = variance
			b.axis = axis
		}
	}
	return b
}

// pickSplitBox selects the splittable box with the greatest variance
// along its dominant axis. Ties prefer the heavier box, then the one
// created earliest.
func pickSplitBox(boxes []cutBox) int {
	best := -1
	for i, b := range boxes {
		if b.end-b.begin < 2 || b.variance <= 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bb := boxes[best]
		switch {
		case b.variance > bb.variance:
			best = i
		case b.variance == bb.variance && b.weight > bb.weight:
			best = i
		case b.variance == bb.variance && b.weight == bb.weight &&
			b.splitOrder < bb.splitOrder:
			best = i
		}
	}
	return best
}

// splitBox sorts the box's entries along its dominant axis and cuts at
// the weighted median, the point dividing the summed weight as evenly
// as possible while leaving both halves non-empty.
func splitBox(entries []cutEntry, b cutBox, leftOrder, rightOrder int) (cutBox, cutBox) {
	axis := b.axis
	seg := entries[b.begin:b.end]
	sort.Slice(seg, func(i, j int) bool {
		vi, vj := axisValue(seg[i].color, axis), axisValue(seg[j].color, axis)
		if vi != vj {
			return vi < vj
		}
		// Entries are unique colors, so comparing the remaining
		// channels yields a strict deterministic order.
		return lessByAllChannels(seg[i].color, seg[j].color)
	})

	half := b.weight / 2
	var acc uint64
	cut := b.begin + 1
	for i := b.begin; i < b.end-1; i++ {
		acc += uint64(entries[i].weight)
		if acc >= half {
			cut = i + 1
			break
		}
	}
	return measureBox(entries, b.begin, cut, leftOrder),
		measureBox(entries, cut, b.end, rightOrder)
}

func lessByAllChannels(a, b PerceptualColor) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	if a.B != b.B {
		return a.B < b.B
	}
	return a.A < b.A
}

// boxCentroid returns the weight-averaged color of the box and its
// total weight.
func boxCentroid(entries []cutEntry, b cutBox) (PerceptualColor, uint64) {
	var r, g, bl, a float64
	var weight uint64
	for _, e := range entries[b.begin:b.end] {
		w := float64(e.weight)
		r += w * float64(e.color.R)
		g += w * float64(e.color.G)
		bl += w * float64(e.color.B)
		a += w * float64(e.color.A)
		weight += uint64(e.weight)
	}
	if weight == 0 {
		return PerceptualColor{}, 0
	}
	inv := 1.0 / float64(weight)
	return PerceptualColor{
		R: float32(r * inv),
		G: float32(g * inv),
		B: float32(bl * inv),
		A: float32(a * inv),
	}, weight
}
