package fmask

import (
	"fmt"
	"math"

	"github.com/alitto/pond"

	"github.com/ossgeo/go-fmask/floodfill"
	"github.com/ossgeo/go-fmask/percentile"
)

// runPass5 collects clear-land NIR/SWIR1 samples, derives the
// background boundary levels, copies the full NIR/SWIR1 rasters, and
// reconstructs both via flood-fill. The two reconstructions share no
// mutable state and run concurrently through a pond task group, per
// spec.md §5 point 1.
func runPass5(r RowReader, sc *scene) error {
	desc := r.Descriptor()
	s := desc.Cols

	sc.allocInfraredRasters()

	var nirSamples, swir1Samples []int16
	minNir, maxNir := int16(math.MaxInt16), int16(math.MinInt16)
	minSwir1, maxSwir1 := int16(math.MaxInt16), int16(math.MinInt16)

	nirBuf := make([]int16, s)
	swir1Buf := make([]int16, s)

	for row := 0; row < desc.Rows; row++ {
		if err := r.GetInputLine(NIR, row, nirBuf); err != nil {
			return wrapIoFailure(row, int(NIR), err)
		}
		if err := r.GetInputLine(SWIR1, row, swir1Buf); err != nil {
			return wrapIoFailure(row, int(SWIR1), err)
		}

		substituteRow(nirBuf, desc.Saturation[NIR])
		substituteRow(swir1Buf, desc.Saturation[SWIR1])

		rowOffset := row * s
		copy(sc.nirData[rowOffset:rowOffset+s], nirBuf)
		copy(sc.swir1Data[rowOffset:rowOffset+s], swir1Buf)

		for col := 0; col < s; col++ {
			idx := rowOffset + col
			cm := sc.clearMask[idx]
			if cm&ClearFill != 0 {
				continue
			}
			if cm&sc.landBit == 0 {
				continue
			}

			nv := nirBuf[col]
			nirSamples = append(nirSamples, nv)
			if nv < minNir {
				minNir = nv
			}
			if nv > maxNir {
				maxNir = nv
			}

			sv := swir1Buf[col]
			swir1Samples = append(swir1Samples, sv)
			if sv < minSwir1 {
				minSwir1 = sv
			}
			if sv > maxSwir1 {
				maxSwir1 = sv
			}
		}
	}

	if len(nirSamples) == 0 {
		minNir, maxNir = 0, 0
	}
	if len(swir1Samples) == 0 {
		minSwir1, maxSwir1 = 0, 0
	}

	nirBoundary, err := percentile.Prctile(nirSamples, len(nirSamples), minNir, maxNir, 17.5)
	if err != nil {
		return fmt.Errorf("%w: nir_boundary: %v", ErrPercentileFailure, err)
	}
	swir1Boundary, err := percentile.Prctile(swir1Samples, len(swir1Samples), minSwir1, maxSwir1, 17.5)
	if err != nil {
		return fmt.Errorf("%w: swir1_boundary: %v", ErrPercentileFailure, err)
	}

	pool := pond.New(2, 0, pond.MinWorkers(2))
	defer pool.StopAndWait()

	group := pool.Group()
	var nirErr, swir1Err error

	group.Submit(func() {
		nirErr = floodfill.FillLocalMinimaInImage("nir", sc.nirData, desc.Rows, s, float32(nirBoundary), sc.filledNir)
	})
	group.Submit(func() {
		swir1Err = floodfill.FillLocalMinimaInImage("swir1", sc.swir1Data, desc.Rows, s, float32(swir1Boundary), sc.filledSwir1)
	})
	group.Wait()

	if nirErr != nil || swir1Err != nil {
		return fmt.Errorf("%w: nir=%v swir1=%v", ErrFloodFillFailure, nirErr, swir1Err)
	}

	return nil
}
