// Package memio provides an in-memory fmask.RowReader, in the shape of
// the teacher's reader.go GenericStream in-memory branch: the whole
// raster is held as plain slices rather than streamed from a file or
// object store. It backs the CLI's --in-memory mode and this package's
// own end-to-end engine test, where constructing a scene directly as
// slices is simpler than standing up TileDB arrays.
package memio

import (
	"fmt"

	fmask "github.com/ossgeo/go-fmask"
)

// Reader is a fully in-memory fmask.RowReader over row-major band
// planes supplied by the caller.
type Reader struct {
	desc    fmask.ImageDescriptor
	bands   [6][]int16 // one full L*S plane per reflective band
	thermal []int16    // one full L*S plane
}

// NewReader constructs a Reader. Each band plane and thermal must have
// length desc.Size(); bands is indexed by fmask.BandIndex.
func NewReader(desc fmask.ImageDescriptor, bands [6][]int16, thermal []int16) (*Reader, error) {
	n := desc.Size()
	for i, b := range bands {
		if len(b) != n {
			return nil, fmt.Errorf("memio: band %d has length %d, want %d", i, len(b), n)
		}
	}
	if len(thermal) != n {
		return nil, fmt.Errorf("memio: thermal has length %d, want %d", len(thermal), n)
	}

	return &Reader{desc: desc, bands: bands, thermal: thermal}, nil
}

func (r *Reader) Descriptor() fmask.ImageDescriptor {
	return r.desc
}

func (r *Reader) GetInputLine(band fmask.BandIndex, row int, dst []int16) error {
	if band < 0 || int(band) >= len(r.bands) {
		return fmt.Errorf("memio: band index %d out of range", band)
	}
	return r.copyRow(r.bands[band], row, dst)
}

func (r *Reader) GetInputThermLine(row int, dst []int16) error {
	return r.copyRow(r.thermal, row, dst)
}

func (r *Reader) copyRow(plane []int16, row int, dst []int16) error {
	s := r.desc.Cols
	if row < 0 || row >= r.desc.Rows {
		return fmt.Errorf("memio: row %d out of range [0,%d)", row, r.desc.Rows)
	}
	if len(dst) != s {
		return fmt.Errorf("memio: dst length %d does not match %d columns", len(dst), s)
	}

	offset := row * s
	copy(dst, plane[offset:offset+s])
	return nil
}
