package enrich

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidFrame marks a decoded frame that failed range validation.
	ErrInvalidFrame = errors.New("invalid shot frame")

	// ErrCalculator marks a calculator transport or protocol failure.
	// Enrichment degrades on it; it is never fatal to the pipeline.
	ErrCalculator = errors.New("calculator failed")
)
