package imagequant

import (
	"math"
	"sort"
)

// sampleTarget caps the number of pixels scanned when building a
// histogram. Images larger than this are read with a deterministic
// per-row stride so the weight distribution stays representative
// without touching every pixel.
const sampleTarget = 1 << 21

// histogramEntry is one deduplicated color with its accumulated pixel
// weight. The nearest/dist pair is scratch space for the refinement
// assignment step; it is only valid after that step has completed for
// the current iteration.
type histogramEntry struct {
	color  PerceptualColor
	weight uint32

	nearest uint8
	dist    float32
}

// Histogram is the weighted set of unique colors in an image. Entries
// are fixed after construction; only the per-entry assignment scratch
// fields mutate during palette refinement.
type Histogram struct {
	entries []histogramEntry

	// total is the summed weight of all entries. For a non-sampled
	// image this equals the pixel count.
	total uint64

	// rawUnique is the distinct color count before any coarsening,
	// used to tell a genuinely single-color image apart from one that
	// precision reduction collapsed.
	rawUnique int

	sampled bool
}

// histAccum accumulates the pixels that share one quantized key so the
// bucket can be represented by its weighted average color rather than
// whichever pixel happened to arrive first.
type histAccum struct {
	r, g, b, a uint64
	weight     uint64
}

// BuildHistogram scans src and deduplicates its pixels into weighted
// unique colors. If the number of distinct colors exceeds maxUnique the
// channel precision is reduced one bit at a time and the pixels
// re-aggregated until the count fits; coarser quantization can only
// merge buckets, so the loop always terminates. Reduction stops at one
// significant bit per channel, so a maxUnique below that floor's 16
// possible buckets can still be exceeded.
//
// Returns ErrEmptyImage when src has no pixels.
func BuildHistogram(src RowSource, maxUnique int) (*Histogram, error) {
	width, height := src.Size()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if maxUnique < 2 {
		maxUnique = 2
	}

	pixels := width * height
	stride := 1
	if pixels > sampleTarget {
		stride = (pixels + sampleTarget - 1) / sampleTarget
	}

	var shift uint
	var buckets map[uint32]*histAccum
	rawUnique := 0
	for {
		buckets = aggregate(src, width, height, stride, shift)
		if shift == 0 {
			rawUnique = len(buckets)
		}
		if len(buckets) <= maxUnique || shift >= 7 {
			break
		}
		shift++
	}

	h := &Histogram{
		entries:   make([]histogramEntry, 0, len(buckets)),
		rawUnique: rawUnique,
		sampled:   stride > 1,
	}

	// Map iteration order is randomized; flatten through sorted keys so
	// the same image always produces the same histogram.
	keys := make([]uint32, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		acc := buckets[k]
		c := Color{
			R: uint8(acc.r / acc.weight),
			G: uint8(acc.g / acc.weight),
			B: uint8(acc.b / acc.weight),
			A: uint8(acc.a / acc.weight),
		}
		weight := acc.weight
		if weight > math.MaxUint32 {
			weight = math.MaxUint32
		}
		h.entries = append(h.entries, histogramEntry{
			color:  c.Perceptual(),
			weight: uint32(weight),
		})
		h.total += weight
	}
	return h, nil
}

// aggregate counts pixels into buckets keyed by their channel values
// with the given number of low bits dropped. With a stride above one,
// each row is sampled at every stride-th pixel starting from an offset
// hashed from the row number; rotating the offset per row keeps
// column-periodic image content from lining up with the stride and
// escaping the sample entirely.
func aggregate(src RowSource, width, height, stride int, shift uint) map[uint32]*histAccum {
	buckets := make(map[uint32]*histAccum)
	for y := 0; y < height; y++ {
		row := src.Row(y)
		start, step := 0, 1
		if stride > 1 {
			start = int((uint64(y)*0x9E3779B1 + 1) % uint64(stride))
			if start >= width {
				start %= width
			}
			step = stride
		}
		for x := start; x < width; x += step {
			c := row[x]
			k := uint32(c.R>>shift)<<24 | uint32(c.G>>shift)<<16 |
				uint32(c.B>>shift)<<8 | uint32(c.A>>shift)
			acc, ok := buckets[k]
			if !ok {
				acc = &histAccum{}
				buckets[k] = acc
			}
			acc.r += uint64(c.R)
			acc.g += uint64(c.G)
			acc.b += uint64(c.B)
			acc.a += uint64(c.A)
			acc.weight++
		}
	}
	return buckets
}

// Len returns the number of unique colors in the histogram.
func (h *Histogram) Len() int {
	return len(h.entries)
}

// TotalWeight returns the summed weight of all entries. For an image
// below the sampling threshold this equals the pixel count.
func (h *Histogram) TotalWeight() uint64 {
	return h.total
}

// Sampled reports whether the histogram was built from a sampled
// subset of the image rather than every pixel.
func (h *Histogram) Sampled() bool {
	return h.sampled
}
