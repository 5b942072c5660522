package rasterio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	fmask "github.com/ossgeo/go-fmask"
)

var ErrWriteRowTdb = errors.New("rasterio: error writing tiledb row")

// CreateMaskArray creates a fresh [ROW, COL] dense array at uri holding
// one uint8 "Value" attribute, suitable for pixel_mask or conf_mask.
func CreateMaskArray(ctx *tiledb.Context, uri string, rows, cols int) error {
	schema, err := MaskSchema(ctx, rows, cols)
	if err != nil {
		return err
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return fmt.Errorf("rasterio: creating array %s: %w", uri, err)
	}
	return nil
}

// CreateBandArray creates a fresh [ROW, COL] dense array at uri holding
// one int16 "Value" attribute, suitable for a reflective or thermal
// band input plane.
func CreateBandArray(ctx *tiledb.Context, uri string, rows, cols int) error {
	schema, err := BandSchema(ctx, rows, cols)
	if err != nil {
		return err
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return fmt.Errorf("rasterio: creating array %s: %w", uri, err)
	}
	return nil
}

// Writer writes the two output masks to their own dense TileDB arrays,
// one whole-array query per mask, following the same
// open-query-submit-finalize shape as Reader.readRow.
type Writer struct {
	ctx       *tiledb.Context
	desc      fmask.ImageDescriptor
	pixelMask *tiledb.Array
	confMask  *tiledb.Array
}

// OpenWriter opens pixel_mask and conf_mask arrays (already created via
// CreateMaskArray) in write mode. The caller owns ctx and must call
// Close when done.
func OpenWriter(ctx *tiledb.Context, desc fmask.ImageDescriptor, pixelMaskURI, confMaskURI string) (*Writer, error) {
	pm, err := ArrayOpen(ctx, pixelMaskURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return nil, fmt.Errorf("rasterio: opening pixel_mask array %s: %w", pixelMaskURI, err)
	}

	cm, err := ArrayOpen(ctx, confMaskURI, tiledb.TILEDB_WRITE)
	if err != nil {
		pm.Close()
		pm.Free()
		return nil, fmt.Errorf("rasterio: opening conf_mask array %s: %w", confMaskURI, err)
	}

	return &Writer{ctx: ctx, desc: desc, pixelMask: pm, confMask: cm}, nil
}

// Close releases the Writer's array handles. Safe to call more than
// once.
func (w *Writer) Close() {
	if w.pixelMask != nil {
		w.pixelMask.Close()
		w.pixelMask.Free()
		w.pixelMask = nil
	}
	if w.confMask != nil {
		w.confMask.Close()
		w.confMask.Free()
		w.confMask = nil
	}
}

// WriteAll writes the full pixel_mask and conf_mask planes in a single
// whole-array query each, since by the time the engine has finished
// both masks are fully resident in memory anyway.
func (w *Writer) WriteAll(pixelMask, confMask []uint8) error {
	n := w.desc.Size()
	if len(pixelMask) != n || len(confMask) != n {
		return fmt.Errorf("rasterio: mask length mismatch: got %d/%d, want %d", len(pixelMask), len(confMask), n)
	}
	if err := writeWholeArray(w.ctx, w.pixelMask, w.desc, pixelMask); err != nil {
		return fmt.Errorf("%w: pixel_mask: %v", ErrWriteRowTdb, err)
	}
	if err := writeWholeArray(w.ctx, w.confMask, w.desc, confMask); err != nil {
		return fmt.Errorf("%w: conf_mask: %v", ErrWriteRowTdb, err)
	}
	return nil
}

func writeWholeArray(ctx *tiledb.Context, arr *tiledb.Array, desc fmask.ImageDescriptor, data []uint8) error {
	query, err := tiledb.NewQuery(ctx, arr)
	if err != nil {
		return err
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}

	subarr, err := arr.NewSubarray()
	if err != nil {
		return err
	}
	defer subarr.Free()

	if err := subarr.AddRangeByName("ROW", tiledb.MakeRange(int32(0), int32(desc.Rows)-1)); err != nil {
		return err
	}
	if err := subarr.AddRangeByName("COL", tiledb.MakeRange(int32(0), int32(desc.Cols)-1)); err != nil {
		return err
	}
	if err := query.SetSubarray(subarr); err != nil {
		return err
	}

	if _, err := query.SetDataBuffer("Value", data); err != nil {
		return err
	}

	if err := query.Submit(); err != nil {
		return err
	}
	return query.Finalize()
}

// WriteGroupSummary serialises summary to JSON and attaches it as
// group metadata, following the teacher's cmd/main.go pattern of
// writing "Data-Processing-Information" onto the enclosing TileDB
// group.
func WriteGroupSummary(grp *tiledb.Group, summary fmask.Summary) error {
	jsn, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("rasterio: marshalling summary: %w", err)
	}
	if err := grp.PutMetadata("Fmask-Summary", jsn); err != nil {
		return fmt.Errorf("rasterio: writing summary group metadata: %w", err)
	}
	return nil
}

// WriteSummarySidecar writes summary as an indented JSON file at path,
// the CLI-facing counterpart to WriteGroupSummary for callers that
// don't want to open the TileDB group just to read the QA numbers.
func WriteSummarySidecar(path string, summary fmask.Summary) error {
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("rasterio: marshalling summary: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("rasterio: writing summary sidecar %s: %w", path, err)
	}
	return nil
}
