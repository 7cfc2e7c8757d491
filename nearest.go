package imagequant

import "sort"

// paletteNode is a node in a kd-tree over palette colors. Each node
// holds the index of one palette entry and splits the remaining
// entries along the axis with the largest variance.
type paletteNode struct {
	index       uint8
	left, right *paletteNode
	splitAxis   int
}

// nearestFinder answers nearest-palette-entry queries in the
// perceptual space. It is read-only after construction and safe to
// share across workers.
type nearestFinder struct {
	colors []PerceptualColor
	root   *paletteNode

	// guard[i] is a quarter of the squared distance from entry i to
	// its nearest other entry. A query whose distance to a guessed
	// entry is below the guard cannot have a closer match, so the tree
	// walk is skipped entirely. Pays off during refinement and remap,
	// where consecutive lookups usually land on the same entry.
	guard []float32
}

// noGuess disables the likely-index shortcut for a query.
const noGuess = -1

func newNearestFinder(pal Palette) *nearestFinder {
	colors := pal.perceptual()
	indexes := make([]uint8, len(colors))
	for i := range indexes {
		indexes[i] = uint8(i)
	}
	f := &nearestFinder{
		colors: colors,
		root:   buildPaletteTree(colors, indexes),
		guard:  make([]float32, len(colors)),
	}
	for i := range colors {
		best := float32(0)
		first := true
		for j := range colors {
			if i == j {
				continue
			}
			d := ColorDistance(colors[i], colors[j])
			if first || d < best {
				best = d
				first = false
			}
		}
		f.guard[i] = best / 4
	}
	return f
}

// buildPaletteTree recursively builds the kd-tree. The split axis is
// the channel with the largest variance among the node's entries, the
// split point their median along that axis.
func buildPaletteTree(colors []PerceptualColor, indexes []uint8) *paletteNode {
	if len(indexes) == 0 {
		return nil
	}
	axis := widestAxis(colors, indexes)
	sort.Slice(indexes, func(i, j int) bool {
		vi := axisValue(colors[indexes[i]], axis)
		vj := axisValue(colors[indexes[j]], axis)
		if vi != vj {
			return vi < vj
		}
		return indexes[i] < indexes[j]
	})
	median := len(indexes) / 2
	return &paletteNode{
		index:     indexes[median],
		left:      buildPaletteTree(colors, indexes[:median]),
		right:     buildPaletteTree(colors, indexes[median+1:]),
		splitAxis: axis,
	}
}

// widestAxis returns the channel with the largest variance across the
// given entries.
func widestAxis(colors []PerceptualColor, indexes []uint8) int {
	var mean, variance [4]float64
	n := float64(len(indexes))
	for _, idx := range indexes {
		for axis := 0; axis < 4; axis++ {
			mean[axis] += float64(axisValue(colors[idx], axis))
		}
	}
	for axis := range mean {
		mean[axis] /= n
	}
	for _, idx := range indexes {
		for axis := 0; axis < 4; axis++ {
			d := float64(axisValue(colors[idx], axis)) - mean[axis]
			variance[axis] += d * d
		}
	}
	best := 0
	for axis := 1; axis < 4; axis++ {
		if variance[axis] > variance[best] {
			best = axis
		}
	}
	return best
}

// Nearest returns the palette index minimizing ColorDistance to c,
// along with that distance. likely, if non-negative, is a guess at the
// answer (typically the previous pixel's or the entry's last
// assignment) used to short-circuit the search.
func (f *nearestFinder) Nearest(c PerceptualColor, likely int) (uint8, float32) {
	bestIdx := uint8(0)
	bestDist := ColorDistance(c, f.colors[0])
	if likely >= 0 && likely < len(f.colors) {
		d := ColorDistance(c, f.colors[likely])
		if d < f.guard[likely] {
			return uint8(likely), d
		}
		if d < bestDist {
			bestIdx, bestDist = uint8(likely), d
		}
	}
	f.search(f.root, c, &bestIdx, &bestDist)
	return bestIdx, bestDist
}

func (f *nearestFinder) search(node *paletteNode, c PerceptualColor, bestIdx *uint8, bestDist *float32) {
	if node == nil {
		return
	}
	d := ColorDistance(c, f.colors[node.index])
	if d < *bestDist || (d == *bestDist && node.index < *bestIdx) {
		*bestIdx = node.index
		*bestDist = d
	}

	axisDist := axisValue(c, node.splitAxis) - axisValue(f.colors[node.index], node.splitAxis)
	near, far := node.left, node.right
	if axisDist >= 0 {
		near, far = node.right, node.left
	}
	f.search(near, c, bestIdx, bestDist)

	// The far subtree can only win if the splitting plane is closer
	// than the best match found so far, measured in the same weighted
	// metric.
	planeDist := axisWeight(node.splitAxis) * axisDist * axisDist
	if planeDist < *bestDist {
		f.search(far, c, bestIdx, bestDist)
	}
}

// axisWeight returns the metric weight of a channel axis, matching
// ColorDistance.
func axisWeight(axis int) float32 {
	switch axis {
	case 0:
		return weightRed
	case 1:
		return weightGreen
	case 2:
		return weightBlue
	default:
		return weightAlpha
	}
}
