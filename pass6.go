package fmask

import "math"

// runPass6 assigns the SHADOW bit from the dual-band flood-fill
// residual minimum and disambiguates WATER against CLOUD
// (spec.md §4.7). It is the last consumer of clear_mask and the
// infrared rasters, both freed on return.
func runPass6(r RowReader, pixelMask, confMask []uint8, sc *scene) error {
	desc := r.Descriptor()
	s := desc.Cols

	var bandBuf [numReflectiveBands][]int16
	for b := range bandBuf {
		bandBuf[b] = make([]int16, s)
	}
	thermBuf := make([]int16, s)

	for row := 0; row < desc.Rows; row++ {
		for b := BandIndex(0); b < numReflectiveBands; b++ {
			if err := r.GetInputLine(b, row, bandBuf[b]); err != nil {
				return wrapIoFailure(row, int(b), err)
			}
		}
		if err := r.GetInputThermLine(row, thermBuf); err != nil {
			return wrapThermIoFailure(row, err)
		}

		rowOffset := row * s
		for col := 0; col < s; col++ {
			idx := rowOffset + col

			if pixelMask[idx]&PixelFill != 0 {
				confMask[idx] = ConfFillPixel
				continue
			}

			nir := substitute(bandBuf[NIR][col], desc.Saturation[NIR])
			swir1 := substitute(bandBuf[SWIR1][col], desc.Saturation[SWIR1])

			newNir := float64(sc.filledNir[idx]) - float64(nir)
			newSwir1 := float64(sc.filledSwir1[idx]) - float64(swir1)
			shadowProb := math.Min(newNir, newSwir1)

			if shadowProb > 200 {
				pixelMask[idx] |= PixelShadow
			} else {
				pixelMask[idx] &^= PixelShadow
			}

			if pixelMask[idx]&PixelWater != 0 && pixelMask[idx]&PixelCloud != 0 {
				pixelMask[idx] &^= PixelWater
			}
		}
	}

	sc.freeInfraredRasters()
	sc.freeClearMask()

	return nil
}
