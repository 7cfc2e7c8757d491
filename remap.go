package imagequant

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// diffusionKernel holds the Floyd-Steinberg weights for the four
// not-yet-processed neighbors of a pixel: right, below-left, below,
// below-right. The weights sum to 1 so the diffused error is
// conserved.
var diffusionKernel = [4]float32{7.0 / 16, 3.0 / 16, 5.0 / 16, 1.0 / 16}

// RemapResult is the output of remapping an image onto a palette: one
// palette index per pixel in row-major order, the palette used, and
// the achieved quality. The caller owns the result.
type RemapResult struct {
	Width, Height int

	// Indices holds one palette index per pixel, row-major.
	Indices []uint8

	Palette Palette

	// MeanError is the normalized mean perceptual error of the final
	// assignment, in [0, 1]. Zero means every pixel maps exactly onto
	// a palette color.
	MeanError float64
}

// Remap assigns every pixel of src to its nearest palette entry. With
// ditherLevel zero each pixel is independent and rows are remapped in
// parallel. A non-zero level enables serpentine Floyd-Steinberg error
// diffusion, which makes each pixel depend on the accumulated error of
// the pixels above and before it; that pass is inherently sequential
// over the whole image.
func Remap(ctx context.Context, src RowSource, pal Palette, ditherLevel float32, workers int) (*RemapResult, error) {
	width, height := src.Size()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if len(pal) == 0 {
		return nil, fmt.Errorf("%w: empty palette", ErrConfig)
	}
	if workers < 1 {
		workers = 1
	}

	res := &RemapResult{
		Width:   width,
		Height:  height,
		Indices: make([]uint8, width*height),
		Palette: pal,
	}
	finder := newNearestFinder(pal)

	var errSum float64
	var err error
	if ditherLevel > 0 {
		errSum, err = remapDithered(ctx, src, pal, finder, res.Indices, ditherLevel)
	} else {
		errSum, err = remapPlain(ctx, src, finder, res.Indices, workers)
	}
	if err != nil {
		return nil, err
	}

	mean := errSum / float64(width*height)
	res.MeanError = math.Sqrt(mean / maxDistance)
	return res, nil
}

// remapPlain fans row ranges out to workers. Each pixel's lookup seeds
// the next one's likely-index shortcut, which on typical images makes
// runs of similar pixels nearly free.
func remapPlain(ctx context.Context, src RowSource, finder *nearestFinder, indices []uint8, workers int) (float64, error) {
	width, height := src.Size()
	if workers > height {
		workers = height
	}
	rows := (height + workers - 1) / workers
	sums := make([]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * rows
		end := begin + rows
		if end > height {
			end = height
		}
		if begin >= end {
			continue
		}
		wg.Add(1)
		go func(w, begin, end int) {
			defer wg.Done()
			var sum float64
			for y := begin; y < end; y++ {
				row := src.Row(y)
				out := indices[y*width : (y+1)*width]
				likely := noGuess
				for x := 0; x < width; x++ {
					idx, dist := finder.Nearest(row[x].Perceptual(), likely)
					out[x] = idx
					likely = int(idx)
					sum += float64(dist)
				}
			}
			sums[w] = sum
		}(w, begin, end)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	var total float64
	for _, s := range sums {
		total += s
	}
	return total, nil
}

// remapDithered walks the image in raster order, alternating direction
// each row to avoid the diagonal drift a fixed scan direction causes.
// The residual between each pixel's error-adjusted color and its
// chosen palette color is scaled by level and spread over the
// unprocessed neighborhood.
//
// The reported error is measured against the original pixel, not the
// error-adjusted one, so it reflects actual output fidelity.
func remapDithered(ctx context.Context, src RowSource, pal Palette, finder *nearestFinder, indices []uint8, level float32) (float64, error) {
	width, height := src.Size()

	// Carried error per channel, indexed x+1 so kernel writes never
	// need bounds checks at the row ends.
	cur := make([][4]float32, width+2)
	next := make([][4]float32, width+2)

	var errSum float64
	leftToRight := true
	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		row := src.Row(y)
		out := indices[y*width : (y+1)*width]

		x, step := 0, 1
		if !leftToRight {
			x, step = width-1, -1
		}
		likely := noGuess
		for i := 0; i < width; i++ {
			orig := row[x]
			carry := cur[x+1]
			adj := Color{
				R: clampChannel(float32(orig.R) + carry[0]),
				G: clampChannel(float32(orig.G) + carry[1]),
				B: clampChannel(float32(orig.B) + carry[2]),
				A: clampChannel(float32(orig.A) + carry[3]),
			}

			idx, _ := finder.Nearest(adj.Perceptual(), likely)
			out[x] = idx
			likely = int(idx)
			chosen := pal[idx].Color
			errSum += float64(ColorDistance(orig.Perceptual(), chosen.Perceptual()))

			residual := [4]float32{
				(float32(orig.R) + carry[0] - float32(chosen.R)) * level,
				(float32(orig.G) + carry[1] - float32(chosen.G)) * level,
				(float32(orig.B) + carry[2] - float32(chosen.B)) * level,
				(float32(orig.A) + carry[3] - float32(chosen.A)) * level,
			}
			diffuse(cur, next, x+1, step, residual)

			x += step
		}

		cur, next = next, cur
		for i := range next {
			next[i] = [4]float32{}
		}
		leftToRight = !leftToRight
	}
	return errSum, nil
}

// diffuse spreads a residual over the Floyd-Steinberg neighborhood.
// The kernel is mirrored on right-to-left rows via step.
func diffuse(cur, next [][4]float32, x, step int, residual [4]float32) {
	for ch, e := range residual {
		cur[x+step][ch] += e * diffusionKernel[0]
		next[x-step][ch] += e * diffusionKernel[1]
		next[x][ch] += e * diffusionKernel[2]
		next[x+step][ch] += e * diffusionKernel[3]
	}
}

func clampChannel(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
