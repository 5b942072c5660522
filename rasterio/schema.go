// Package rasterio is a concrete implementation of the raster I/O
// collaborator spec.md §1 scopes out of the core engine: it streams
// band rows from dense TileDB arrays and writes the two output masks
// back to TileDB, using struct-tag driven schema construction in the
// same shape as the teacher's schema.go.
package rasterio

import (
	"errors"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

var (
	ErrCreateSchemaTdb    = errors.New("rasterio: error creating tiledb schema")
	ErrCreateAttributeTdb = errors.New("rasterio: error creating tiledb attribute")
	ErrCreateDimTdb       = errors.New("rasterio: error creating tiledb dimension")
)

// maskAttr is the struct walked by schemaAttrs for the two output mask
// arrays; the tiledb/filters tags follow the teacher's `schemaAttrs`
// convention verbatim, just with one uint8 attribute per array rather
// than the teacher's many-field ping record.
type maskAttr struct {
	Value uint8 `tiledb:"ftype=attr,dtype=uint8" filters:"zstd(level=9)"`
}

// bandAttr is the equivalent struct for the six reflective bands and
// the thermal band, each stored as a signed 16 bit reflectance/DN
// value with the same zstd filter as the mask arrays.
type bandAttr struct {
	Value int16 `tiledb:"ftype=attr,dtype=int16" filters:"zstd(level=9)"`
}

// MaskSchema builds the [ROW, COL] dense schema used for pixel_mask
// and conf_mask, one uint8 per pixel.
func MaskSchema(ctx *tiledb.Context, rows, cols int) (*tiledb.ArraySchema, error) {
	return rasterSchema(ctx, rows, cols, &maskAttr{})
}

// BandSchema builds the [ROW, COL] dense schema used for an input band
// plane, one int16 per pixel.
func BandSchema(ctx *tiledb.Context, rows, cols int) (*tiledb.ArraySchema, error) {
	return rasterSchema(ctx, rows, cols, &bandAttr{})
}

// rasterSchema builds a 2D dense array schema of shape rows x cols for
// the single attribute described by attrStruct, with a row-major
// dimension layout matching how the core engine streams rows.
func rasterSchema(ctx *tiledb.Context, rows, cols int, attrStruct any) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	defer domain.Free()

	rowTile := rows
	if rowTile > 4096 {
		rowTile = 4096
	}
	colTile := cols
	if colTile > 4096 {
		colTile = 4096
	}

	rowDim, err := tiledb.NewDimension(ctx, "ROW", tiledb.TILEDB_INT32, []int32{0, int32(rows) - 1}, int32(rowTile))
	if err != nil {
		return nil, errors.Join(ErrCreateDimTdb, err)
	}
	defer rowDim.Free()

	colDim, err := tiledb.NewDimension(ctx, "COL", tiledb.TILEDB_INT32, []int32{0, int32(cols) - 1}, int32(colTile))
	if err != nil {
		return nil, errors.Join(ErrCreateDimTdb, err)
	}
	defer colDim.Free()

	if err := domain.AddDimensions(rowDim, colDim); err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	if err := schema.SetDomain(domain); err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	if err := schemaAttrs(attrStruct, schema, ctx); err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	return schema, nil
}

// schemaAttrs walks t's exported fields, skipping any tagged as a
// dimension, and adds a TileDB attribute per remaining field. Adapted
// from the teacher's schemaAttrs: same two-tag (tiledb/filters)
// struct-walk, generalized from GSF ping records to fixed-shape mask
// arrays.
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	values := reflect.ValueOf(t).Elem()
	types := values.Type()

	filtDefs, _ := stgpsr.ParseStruct(t, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldTdbDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}

		def, ok := fieldTdbDefs["ftype"]
		if !ok {
			return errors.Join(ErrCreateAttributeTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		if err := createAttr(name, filtDefs[name], fieldTdbDefs, schema, ctx); err != nil {
			return errors.Join(ErrCreateAttributeTdb, err)
		}
	}

	return nil
}

func createAttr(
	fieldName string,
	filterDefs []stgpsr.Definition,
	tiledbDefs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema,
	ctx *tiledb.Context,
) error {
	def, ok := tiledbDefs["dtype"]
	if !ok {
		return errors.New("dtype tag not found")
	}
	dtype, _ := def.Attribute("dtype")

	var tdbDtype tiledb.Datatype
	switch dtype {
	case "uint8":
		tdbDtype = tiledb.TILEDB_UINT8
	case "int16":
		tdbDtype = tiledb.TILEDB_INT16
	case "float32":
		tdbDtype = tiledb.TILEDB_FLOAT32
	default:
		return errors.New("unsupported dtype tag: " + dtype.(string))
	}

	filts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return err
	}
	defer filts.Free()

	for _, filter := range filterDefs {
		if filter.Name() != "zstd" {
			continue
		}
		level, ok := filter.Attribute("level")
		if !ok {
			return errors.New("zstd level not defined")
		}
		filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
		if err != nil {
			return err
		}
		defer filt.Free()
		if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, int32(level.(int64))); err != nil {
			return err
		}
		if err := filts.AddFilter(filt); err != nil {
			return err
		}
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, tdbDtype)
	if err != nil {
		return err
	}
	defer attr.Free()

	if err := attr.SetFilterList(filts); err != nil {
		return err
	}

	return schema.AddAttributes(attr)
}
