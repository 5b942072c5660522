package rasterio

import (
	"errors"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	fmask "github.com/ossgeo/go-fmask"
)

var ErrReadRowTdb = errors.New("rasterio: error reading tiledb row")

// Reader is an fmask.RowReader backed by one dense TileDB array per
// reflective band plus one for the thermal band, each holding a single
// int16 "Value" attribute over a [ROW, COL] domain (see BandSchema),
// queried one row at a time. It mirrors the teacher's
// per-array-per-record-type layout (ping headers, sensor metadata,
// beam arrays each live in their own array) applied to bands instead
// of sonar record types.
type Reader struct {
	ctx     *tiledb.Context
	desc    fmask.ImageDescriptor
	bands   [6]*tiledb.Array
	thermal *tiledb.Array
}

// OpenReader opens the six reflective band arrays plus the thermal
// array rooted at bandURIs/thermURI in read mode. The caller owns
// ctx and must call Close when done.
func OpenReader(ctx *tiledb.Context, desc fmask.ImageDescriptor, bandURIs [6]string, thermURI string) (*Reader, error) {
	r := &Reader{ctx: ctx, desc: desc}

	for i, uri := range bandURIs {
		arr, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("rasterio: opening band %d array %s: %w", i, uri, err)
		}
		r.bands[i] = arr
	}

	thermArr, err := ArrayOpen(ctx, thermURI, tiledb.TILEDB_READ)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("rasterio: opening thermal array %s: %w", thermURI, err)
	}
	r.thermal = thermArr

	return r, nil
}

// Close releases every array handle the Reader holds. Safe to call
// more than once.
func (r *Reader) Close() {
	for i, arr := range r.bands {
		if arr != nil {
			arr.Close()
			arr.Free()
			r.bands[i] = nil
		}
	}
	if r.thermal != nil {
		r.thermal.Close()
		r.thermal.Free()
		r.thermal = nil
	}
}

func (r *Reader) Descriptor() fmask.ImageDescriptor {
	return r.desc
}

func (r *Reader) GetInputLine(band fmask.BandIndex, row int, dst []int16) error {
	if band < 0 || int(band) >= len(r.bands) {
		return fmt.Errorf("rasterio: band index %d out of range", band)
	}
	return r.readRow(r.bands[band], row, dst)
}

func (r *Reader) GetInputThermLine(row int, dst []int16) error {
	return r.readRow(r.thermal, row, dst)
}

// readRow queries a single [row, 0:cols-1] subarray slice of arr's
// "Value" attribute into dst, following the teacher's subarray-by-range
// query shape (writePingHeaders) generalized to a 2D row slice read.
func (r *Reader) readRow(arr *tiledb.Array, row int, dst []int16) error {
	cols := r.desc.Cols
	if row < 0 || row >= r.desc.Rows {
		return fmt.Errorf("rasterio: row %d out of range [0,%d)", row, r.desc.Rows)
	}
	if len(dst) != cols {
		return fmt.Errorf("rasterio: dst length %d does not match %d columns", len(dst), cols)
	}

	query, err := tiledb.NewQuery(r.ctx, arr)
	if err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}

	subarr, err := arr.NewSubarray()
	if err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}
	defer subarr.Free()

	if err := subarr.AddRangeByName("ROW", tiledb.MakeRange(int32(row), int32(row))); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}
	if err := subarr.AddRangeByName("COL", tiledb.MakeRange(int32(0), int32(cols)-1)); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}
	if err := query.SetSubarray(subarr); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}

	if _, err := query.SetDataBuffer("Value", dst); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}

	if err := query.Submit(); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}
	if err := query.Finalize(); err != nil {
		return errors.Join(ErrReadRowTdb, err)
	}

	return nil
}
