package fmask

// RowReader is the raster I/O contract the engine consumes. The
// raster I/O layer itself is an external collaborator (spec.md §1);
// this interface is what the core passes are written against.
//
// The engine allocates the dst buffers it passes in and reuses them
// from row to row; implementations fill dst and must not retain it.
// Saturation substitution is applied by the engine after the read.
type RowReader interface {
	// GetInputLine fills dst (length S) with the calibrated int16
	// samples for the given band and row, saturation sentinels included.
	GetInputLine(band BandIndex, row int, dst []int16) error

	// GetInputThermLine fills dst (length S) with the thermal samples
	// (°C × 100) for the given row.
	GetInputThermLine(row int, dst []int16) error

	// Descriptor returns the immutable image geometry and saturation
	// metadata for the run.
	Descriptor() ImageDescriptor
}
