package imagequant

import "errors"

// Sentinel errors reported by the quantization pipeline. Fatal
// conditions (ErrEmptyImage, ErrDegenerateImage, ErrConfig) stop the
// pipeline at the stage they occur with no partial result.
// ErrQualityBelowThreshold is recoverable: the best palette found is
// returned alongside it and the caller decides whether to keep it.
var (
	// ErrEmptyImage is returned when an image with zero pixels is
	// supplied to the histogram builder.
	ErrEmptyImage = errors.New("imagequant: image has no pixels")

	// ErrDegenerateImage is returned when histogram coarsening
	// collapses an image with multiple distinct colors down to fewer
	// than two entries while the requested palette needs more.
	ErrDegenerateImage = errors.New("imagequant: too few distinct colors after histogram reduction")

	// ErrConfig is returned when a configuration value is out of its
	// documented range.
	ErrConfig = errors.New("imagequant: invalid configuration")

	// ErrQualityBelowThreshold is returned when refinement converged
	// but the achieved quality is below the configured minimum. The
	// palette returned with it is still the best one found.
	ErrQualityBelowThreshold = errors.New("imagequant: converged below minimum quality")

	// ErrAborted is returned when the caller's context is cancelled.
	// Cancellation is only observed at phase and iteration boundaries,
	// never mid-pixel.
	ErrAborted = errors.New("imagequant: aborted")
)
