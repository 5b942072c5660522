package fmask

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per row of the failure taxonomy. All are fatal
// to a run: there is no local recovery and no retry.
var (
	ErrAllocationFailure = errors.New("fmask: scratch buffer allocation failure")
	ErrIoFailure         = errors.New("fmask: row reader failure")
	ErrPercentileFailure = errors.New("fmask: percentile service failure")
	ErrFloodFillFailure  = errors.New("fmask: flood-fill reconstruction failure")
)

// wrapIoFailure attaches the row/band diagnostic spec.md §7 calls for.
func wrapIoFailure(row, band int, cause error) error {
	return fmt.Errorf("%w: row %d band %d: %v", ErrIoFailure, row, band, cause)
}

// wrapThermIoFailure attaches the row diagnostic for thermal-line reads.
func wrapThermIoFailure(row int, cause error) error {
	return fmt.Errorf("%w: row %d thermal: %v", ErrIoFailure, row, cause)
}
