package rasterio

import tiledb "github.com/TileDB-Inc/TileDB-Go"

// ArrayOpen opens a TileDB array at uri in the given mode, freeing the
// array handle if the open call fails. Adapted directly from the
// teacher's tiledb.go helper of the same name.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}
