package imagequant

import (
	"math/rand"
	"testing"
)

func randomPalette(n int, seed int64) Palette {
	rng := rand.New(rand.NewSource(seed))
	pal := make(Palette, 0, n)
	seen := map[uint32]bool{}
	for len(pal) < n {
		c := Color{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		}
		if seen[c.key()] {
			continue
		}
		seen[c.key()] = true
		pal = append(pal, PaletteEntry{Color: c})
	}
	return pal
}

func bruteForceNearest(colors []PerceptualColor, c PerceptualColor) (int, float32) {
	best := 0
	bestDist := ColorDistance(c, colors[0])
	for i := 1; i < len(colors); i++ {
		if d := ColorDistance(c, colors[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func TestNearestMatchesBruteForce(t *testing.T) {
	for _, size := range []int{1, 2, 7, 32, 256} {
		pal := randomPalette(size, int64(size))
		finder := newNearestFinder(pal)
		colors := pal.perceptual()

		rng := rand.New(rand.NewSource(int64(size) + 1000))
		for i := 0; i < 500; i++ {
			q := Color{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: uint8(rng.Intn(256)),
			}.Perceptual()
			_, wantDist := bruteForceNearest(colors, q)
			_, gotDist := finder.Nearest(q, noGuess)
			if gotDist != wantDist {
				t.Fatalf("palette size %d: tree found distance %g, brute force %g", size, gotDist, wantDist)
			}
		}
	}
}

func TestNearestExactHit(t *testing.T) {
	pal := randomPalette(64, 3)
	finder := newNearestFinder(pal)
	for i, e := range pal {
		idx, dist := finder.Nearest(e.Color.Perceptual(), noGuess)
		if dist != 0 {
			t.Fatalf("entry %d: exact query returned distance %g", i, dist)
		}
		if finder.colors[idx] != e.Color.Perceptual() {
			t.Fatalf("entry %d: exact query returned a different color", i)
		}
	}
}

func TestNearestLikelyShortcut(t *testing.T) {
	pal := randomPalette(64, 4)
	finder := newNearestFinder(pal)

	// A query sitting exactly on an entry, hinted with that entry,
	// must take the guard shortcut and still return distance zero.
	for i, e := range pal {
		idx, dist := finder.Nearest(e.Color.Perceptual(), i)
		if int(idx) != i || dist != 0 {
			t.Fatalf("hinted exact query for entry %d returned (%d, %g)", i, idx, dist)
		}
	}

	// A wrong hint must not change the answer.
	rng := rand.New(rand.NewSource(5))
	colors := pal.perceptual()
	for i := 0; i < 300; i++ {
		q := Color{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		}.Perceptual()
		_, wantDist := bruteForceNearest(colors, q)
		_, gotDist := finder.Nearest(q, rng.Intn(len(pal)))
		if gotDist != wantDist {
			t.Fatalf("hinted query returned distance %g, brute force %g", gotDist, wantDist)
		}
	}
}

func TestNearestSingleEntryPalette(t *testing.T) {
	pal := Palette{{Color: Color{R: 1, G: 2, B: 3, A: 255}}}
	finder := newNearestFinder(pal)
	idx, _ := finder.Nearest(Color{R: 200, G: 100, B: 50, A: 255}.Perceptual(), noGuess)
	if idx != 0 {
		t.Fatalf("index = %d, want 0", idx)
	}
}
