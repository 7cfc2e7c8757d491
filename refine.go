package imagequant

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// maxRefineIterations derives the refinement iteration cap from speed:
// the fastest setting does only a couple of relaxation passes, the
// slowest several dozen.
func maxRefineIterations(speed int) int {
	return 2 + (10-speed)*4
}

// convergenceThreshold is the relative distortion improvement below
// which refinement stops early. Higher speeds give up sooner.
func convergenceThreshold(speed int) float64 {
	return 0.0005 * float64(speed)
}

// RefinePalette improves an initial palette by centroid relaxation
// under the perceptual metric: alternately assign every histogram
// entry to its nearest palette color, then move each palette color to
// the weighted centroid of its assignees. Total weighted distortion is
// non-increasing across iterations; the loop stops when the relative
// improvement drops below the speed-scaled threshold or the iteration
// cap is hit.
//
// The returned palette is ordered most-popular first, with the summed
// distortion of the final assignment. Sorting does not change the
// distortion; callers needing per-pixel assignments against the sorted
// palette get them from Remap.
//
// Cancellation is observed only between iterations and surfaces as
// ErrAborted.
func RefinePalette(ctx context.Context, h *Histogram, initial Palette, speed, workers int) (Palette, float64, error) {
	if len(initial) == 0 || h.Len() == 0 {
		return nil, 0, ErrEmptyImage
	}
	if workers < 1 {
		workers = 1
	}

	pal := make(Palette, len(initial))
	copy(pal, initial)

	maxIter := maxRefineIterations(speed)
	threshold := convergenceThreshold(speed)
	prev := math.Inf(1)
	var distortion float64

	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrAborted, err)
		}

		finder := newNearestFinder(pal)
		distortion = assignEntries(h, finder, workers)

		// Reassignment never picks a farther entry and recentroiding
		// never raises distortion for a fixed assignment, so prev >=
		// distortion holds and the improvement test is a plain delta.
		if !math.IsInf(prev, 1) && prev-distortion <= threshold*prev {
			break
		}
		if iter == maxIter-1 {
			break
		}
		prev = distortion
		pal = recomputePalette(h, pal)
	}

	// Popularity reflects the final assignment.
	weights := make([]uint64, len(pal))
	for i := range h.entries {
		weights[h.entries[i].nearest] += uint64(h.entries[i].weight)
	}
	for i := range pal {
		pal[i].Popularity = weights[i]
	}
	pal.sortByPopularity()
	return pal, distortion, nil
}

// assignEntries finds the nearest palette entry for every histogram
// entry, caching the index and distance on the entry, and returns the
// total weighted distortion. The work fans out across workers; each
// worker reads the shared palette tree and writes only its own slice
// of entries, so no locking is needed beyond the join.
func assignEntries(h *Histogram, finder *nearestFinder, workers int) float64 {
	n := len(h.entries)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	sums := make([]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * chunk
		end := begin + chunk
		if end > n {
			end = n
		}
		if begin >= end {
			continue
		}
		wg.Add(1)
		go func(w, begin, end int) {
			defer wg.Done()
			var sum float64
			for i := begin; i < end; i++ {
				e := &h.entries[i]
				idx, dist := finder.Nearest(e.color, int(e.nearest))
				e.nearest = idx
				e.dist = dist
				sum += float64(e.weight) * float64(dist)
			}
			sums[w] = sum
		}(w, begin, end)
	}
	wg.Wait()

	var total float64
	for _, s := range sums {
		total += s
	}
	return total
}

// clusterStats collects the per-palette-entry accumulations of one
// assignment pass.
type clusterStats struct {
	r, g, b, a float64
	weight     uint64
	distortion float64

	// worst is the index of the assigned histogram entry with the
	// largest cached distance, used to reseed dead palette entries.
	worst     int
	worstDist float32
}

// recomputePalette rebuilds the palette from the current assignment:
// each entry becomes the weighted centroid of its cluster. A palette
// entry with no assigned weight would otherwise stay frozen forever,
// so it is reseeded from the worst-represented color of the cluster
// with the highest distortion.
func recomputePalette(h *Histogram, pal Palette) Palette {
	stats := make([]clusterStats, len(pal))
	for i := range stats {
		stats[i].worst = -1
	}
	for i := range h.entries {
		e := &h.entries[i]
		s := &stats[e.nearest]
		w := float64(e.weight)
		s.r += w * float64(e.color.R)
		s.g += w * float64(e.color.G)
		s.b += w * float64(e.color.B)
		s.a += w * float64(e.color.A)
		s.weight += uint64(e.weight)
		s.distortion += w * float64(e.dist)
		if s.worst < 0 || e.dist > s.worstDist {
			s.worst = i
			s.worstDist = e.dist
		}
	}

	next := make(Palette, len(pal))
	for i, s := range stats {
		if s.weight == 0 {
			next[i] = reseedEntry(h, stats)
			continue
		}
		inv := 1.0 / float64(s.weight)
		centroid := PerceptualColor{
			R: float32(s.r * inv),
			G: float32(s.g * inv),
			B: float32(s.b * inv),
			A: float32(s.a * inv),
		}
		next[i] = PaletteEntry{Color: centroid.Color(), Popularity: s.weight}
	}
	return next
}

// reseedEntry picks the worst-represented histogram entry of the
// highest-distortion cluster and promotes its color to a palette entry
// of its own. The victim cluster's stats are cleared so several dead
// entries in one pass reseed from different clusters.
func reseedEntry(h *Histogram, stats []clusterStats) PaletteEntry {
	victim := -1
	for i := range stats {
		if stats[i].worst < 0 {
			continue
		}
		if victim < 0 || stats[i].distortion > stats[victim].distortion {
			victim = i
		}
	}
	if victim < 0 {
		// Every cluster is empty; nothing sensible to split.
		return PaletteEntry{}
	}
	e := &h.entries[stats[victim].worst]
	stats[victim].distortion = 0
	stats[victim].worst = -1
	return PaletteEntry{Color: e.color.Color(), Popularity: uint64(e.weight)}
}
