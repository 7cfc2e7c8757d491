package imagequant

import (
	"testing"
)

func TestBuildHistogramWeightConservation(t *testing.T) {
	for _, size := range []struct{ w, h int }{{1, 1}, {3, 5}, {16, 16}, {40, 25}} {
		src := noiseSource(size.w, size.h, int64(size.w*size.h))
		hist, err := BuildHistogram(src, 1<<17)
		if err != nil {
			t.Fatal(err)
		}
		if want := uint64(size.w * size.h); hist.TotalWeight() != want {
			t.Fatalf("%dx%d: total weight = %d, want %d", size.w, size.h, hist.TotalWeight(), want)
		}
		if hist.Sampled() {
			t.Fatalf("%dx%d: unexpectedly sampled", size.w, size.h)
		}
	}
}

func TestBuildHistogramDeduplicates(t *testing.T) {
	red := Color{R: 255, A: 255}
	blue := Color{B: 255, A: 255}
	pix := []Color{red, blue, red, red, blue, red}
	hist, err := BuildHistogram(newPixelSource(3, 2, pix), 1<<17)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Len() != 2 {
		t.Fatalf("unique colors = %d, want 2", hist.Len())
	}
	if hist.TotalWeight() != 6 {
		t.Fatalf("total weight = %d, want 6", hist.TotalWeight())
	}
	weights := map[uint32]bool{}
	for _, e := range hist.entries {
		weights[e.weight] = true
	}
	if !weights[4] || !weights[2] {
		t.Fatalf("entry weights %v, want {4, 2}", weights)
	}
}

func TestBuildHistogramEmptyImage(t *testing.T) {
	if _, err := BuildHistogram(newPixelSource(0, 0, nil), 1<<17); err != ErrEmptyImage {
		t.Fatalf("error = %v, want ErrEmptyImage", err)
	}
}

func TestBuildHistogramCoarsens(t *testing.T) {
	// 256 distinct grays against a cap of 16 must coarsen down to the
	// cap, keeping total weight intact.
	pix := make([]Color, 256)
	for i := range pix {
		g := uint8(i)
		pix[i] = Color{R: g, G: g, B: g, A: 255}
	}
	hist, err := BuildHistogram(newPixelSource(16, 16, pix), 16)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Len() > 16 {
		t.Fatalf("unique colors after coarsening = %d, want <= 16", hist.Len())
	}
	if hist.Len() < 2 {
		t.Fatalf("coarsening collapsed to %d colors", hist.Len())
	}
	if hist.TotalWeight() != 256 {
		t.Fatalf("total weight = %d, want 256", hist.TotalWeight())
	}
	if hist.rawUnique != 256 {
		t.Fatalf("raw unique = %d, want 256", hist.rawUnique)
	}
}

func TestBuildHistogramCoarseningMonotonic(t *testing.T) {
	// A tighter cap never yields more unique colors than a looser one.
	src := noiseSource(64, 64, 21)
	prev := -1
	for _, limit := range []int{4096, 1024, 256, 64, 16, 4} {
		hist, err := BuildHistogram(src, limit)
		if err != nil {
			t.Fatal(err)
		}
		if prev >= 0 && hist.Len() > prev {
			t.Fatalf("cap %d produced %d colors, more than looser cap's %d", limit, hist.Len(), prev)
		}
		prev = hist.Len()
	}
}

// stripeSource generates a column-periodic image procedurally, sharing
// one row buffer, so sampled-path tests can exceed the sampling
// threshold without holding millions of pixels.
type stripeSource struct {
	width, height int
	row           []Color
}

// newStripeSource places stripe at every column index congruent to
// period-1 modulo period and base everywhere else.
func newStripeSource(width, height, period int, base, stripe Color) *stripeSource {
	row := make([]Color, width)
	for x := range row {
		if x%period == period-1 {
			row[x] = stripe
		} else {
			row[x] = base
		}
	}
	return &stripeSource{width: width, height: height, row: row}
}

func (s *stripeSource) Size() (int, int) { return s.width, s.height }

func (s *stripeSource) Row(y int) []Color { return s.row }

func TestBuildHistogramSampledKeepsPeriodicColors(t *testing.T) {
	// 2048x1200 forces sampling with an even stride. A color class
	// occupying every fourth column must survive with its quarter of
	// the weight; a stride aligned to the column period would miss it
	// completely.
	red := Color{R: 255, A: 255}
	blue := Color{B: 200, A: 255}
	src := newStripeSource(2048, 1200, 4, red, blue)

	hist, err := BuildHistogram(src, 1<<17)
	if err != nil {
		t.Fatal(err)
	}
	if !hist.Sampled() {
		t.Fatal("image above the pixel threshold was not sampled")
	}
	if hist.Len() != 2 {
		t.Fatalf("unique colors = %d, want 2", hist.Len())
	}

	var blueWeight uint64
	for _, e := range hist.entries {
		if e.color == blue.Perceptual() {
			blueWeight = uint64(e.weight)
		}
	}
	ratio := float64(blueWeight) / float64(hist.TotalWeight())
	if ratio < 0.2 || ratio > 0.3 {
		t.Fatalf("sampled stripe weight ratio = %.3f, want about 0.25", ratio)
	}
}

func TestBuildHistogramSampledDeterministic(t *testing.T) {
	src := newStripeSource(2048, 1200, 4,
		Color{R: 255, A: 255}, Color{B: 200, A: 255})
	a, err := BuildHistogram(src, 1<<17)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildHistogram(src, 1<<17)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != b.Len() || a.TotalWeight() != b.TotalWeight() {
		t.Fatalf("sampled runs differ: %d/%d colors, %d/%d weight",
			a.Len(), b.Len(), a.TotalWeight(), b.TotalWeight())
	}
	for i := range a.entries {
		if a.entries[i] != b.entries[i] {
			t.Fatalf("sampled entry %d differs between runs", i)
		}
	}
}

func TestBuildHistogramPrecisionFloor(t *testing.T) {
	// Coarsening stops at one significant bit per channel; channel
	// extremes stay distinct even under a cap the floor cannot meet.
	pix := make([]Color, 0, 16)
	for _, r := range []uint8{0, 255} {
		for _, g := range []uint8{0, 255} {
			for _, b := range []uint8{0, 255} {
				for _, a := range []uint8{0, 255} {
					pix = append(pix, Color{R: r, G: g, B: b, A: a})
				}
			}
		}
	}
	hist, err := BuildHistogram(newPixelSource(4, 4, pix), 2)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Len() != 16 {
		t.Fatalf("unique colors = %d, want the 16-bucket floor", hist.Len())
	}
	if hist.TotalWeight() != 16 {
		t.Fatalf("total weight = %d, want 16", hist.TotalWeight())
	}
}

func TestBuildHistogramDeterministic(t *testing.T) {
	src := noiseSource(32, 32, 9)
	a, err := BuildHistogram(src, 256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildHistogram(src, 256)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != b.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.entries {
		if a.entries[i].color != b.entries[i].color || a.entries[i].weight != b.entries[i].weight {
			t.Fatalf("entry %d differs between runs", i)
		}
	}
}
