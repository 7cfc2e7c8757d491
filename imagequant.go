// Package imagequant reduces full-color raster images to a bounded
// palette of representative colors and remaps pixels onto it, with
// optional error-diffusion dithering. It is built for palette-based
// encoders that need a small fixed color table: the pipeline runs
// histogram construction, median-cut palette generation, k-means style
// refinement under a perceptual metric, and a final remap pass.
//
// The two pipeline stages are exposed separately so a palette
// quantized from one image can be inspected, tweaked, or reused across
// several similar images before remapping.
package imagequant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
)

// RowSource provides read-only access to an image's pixels one row at
// a time. The core never assumes a concrete memory layout; embedders
// with foreign-owned pixel buffers only need to surface rows through
// this interface. Implementations must tolerate rows being requested
// from multiple goroutines, each for distinct y values.
type RowSource interface {
	// Size returns the image dimensions in pixels.
	Size() (width, height int)

	// Row returns row y as a slice of width Colors. The core treats
	// the slice as read-only and never retains it across calls.
	Row(y int) []Color
}

// QuantizationSession orchestrates the quantization pipeline under a
// validated speed/quality configuration. A session is immutable after
// construction and safe to reuse across images.
type QuantizationSession struct {
	maxColors  int
	speed      int
	minQuality float64
	dithering  float64
	workers    int
}

// SessionOption configures a QuantizationSession.
type SessionOption func(*QuantizationSession)

// WithMaxColors bounds the palette size, 1 to 256. Default 256.
func WithMaxColors(n int) SessionOption {
	return func(s *QuantizationSession) { s.maxColors = n }
}

// WithSpeed trades quality for wall-clock time, 1 (best) to 10
// (fastest). Higher speeds cut refinement iterations and histogram
// precision. Default 4.
func WithSpeed(speed int) SessionOption {
	return func(s *QuantizationSession) { s.speed = speed }
}

// WithMinQuality sets the minimum acceptable quality in [0, 1], where
// 1 means a perfect reproduction. If refinement converges below it,
// Quantize returns the best palette found wrapped in
// ErrQualityBelowThreshold. Default 0 (accept anything).
func WithMinQuality(q float64) SessionOption {
	return func(s *QuantizationSession) { s.minQuality = q }
}

// WithDithering sets the error-diffusion level in [0, 1]: 0 disables
// dithering, 1 diffuses the full quantization residual. Default 1.
func WithDithering(level float64) SessionOption {
	return func(s *QuantizationSession) { s.dithering = level }
}

// WithWorkers sets the goroutine count for the parallel phases.
// Default is the number of CPUs.
func WithWorkers(n int) SessionOption {
	return func(s *QuantizationSession) { s.workers = n }
}

// NewSession validates the options and returns a session. Out-of-range
// values fail fast with ErrConfig.
func NewSession(opts ...SessionOption) (*QuantizationSession, error) {
	s := &QuantizationSession{
		maxColors: 256,
		speed:     4,
		dithering: 1,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.maxColors < 1 || s.maxColors > 256:
		return nil, fmt.Errorf("%w: max colors %d outside [1, 256]", ErrConfig, s.maxColors)
	case s.speed < 1 || s.speed > 10:
		return nil, fmt.Errorf("%w: speed %d outside [1, 10]", ErrConfig, s.speed)
	case s.minQuality < 0 || s.minQuality > 1:
		return nil, fmt.Errorf("%w: min quality %g outside [0, 1]", ErrConfig, s.minQuality)
	case s.dithering < 0 || s.dithering > 1:
		return nil, fmt.Errorf("%w: dithering level %g outside [0, 1]", ErrConfig, s.dithering)
	case s.workers < 1:
		return nil, fmt.Errorf("%w: workers %d must be positive", ErrConfig, s.workers)
	}
	return s, nil
}

// maxUnique derives the histogram size bound from speed: faster
// settings accept a coarser histogram.
func (s *QuantizationSession) maxUnique() int {
	return (1 << 17) >> uint((s.speed-1)/3)
}

// Quantize builds and refines a palette for src. The returned palette
// is ordered most-popular first.
//
// If the achieved quality falls short of the configured minimum, the
// best palette found is still returned together with
// ErrQualityBelowThreshold; the caller decides whether to use it.
func (s *QuantizationSession) Quantize(ctx context.Context, src RowSource) (Palette, error) {
	hist, err := BuildHistogram(src, s.maxUnique())
	if err != nil {
		return nil, err
	}
	// A genuinely single-color image is fine (one entry satisfies any
	// bound), but an image whose diversity was destroyed by precision
	// reduction cannot support a multi-color palette.
	if hist.Len() < 2 && hist.rawUnique > 1 && s.maxColors > 1 {
		return nil, ErrDegenerateImage
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	initial := BuildInitialPalette(hist, s.maxColors)
	pal, distortion, err := RefinePalette(ctx, hist, initial, s.speed, s.workers)
	if err != nil {
		return nil, err
	}

	quality := 1 - math.Sqrt(distortion/float64(hist.TotalWeight())/maxDistance)
	if quality < s.minQuality {
		return pal, fmt.Errorf("%w: achieved %.4f, wanted %.4f",
			ErrQualityBelowThreshold, quality, s.minQuality)
	}
	return pal, nil
}

// Remap assigns src's pixels to entries of pal, applying the session's
// dithering level. The palette does not have to come from this
// session, or from Quantize at all.
func (s *QuantizationSession) Remap(ctx context.Context, src RowSource, pal Palette) (*RemapResult, error) {
	return Remap(ctx, src, pal, float32(s.dithering), s.workers)
}

// QuantizeAndRemap runs both stages. If quantization finishes below
// the minimum quality the remap still runs on the best palette and the
// result is returned together with ErrQualityBelowThreshold.
func (s *QuantizationSession) QuantizeAndRemap(ctx context.Context, src RowSource) (*RemapResult, error) {
	pal, qerr := s.Quantize(ctx, src)
	if qerr != nil && !errors.Is(qerr, ErrQualityBelowThreshold) {
		return nil, qerr
	}
	res, err := s.Remap(ctx, src, pal)
	if err != nil {
		return nil, err
	}
	return res, qerr
}
