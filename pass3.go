package fmask

import (
	"math"

	"github.com/samber/lo"
)

// runPass3 computes the per-pixel cloud probability surfaces: land
// temperature-times-variability, water temperature-times-brightness
// (spec.md §4.4).
func runPass3(r RowReader, pixelMask []uint8, sc *scene) error {
	desc := r.Descriptor()
	s := desc.Cols

	sc.allocProbSurfaces()

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
				continue
			}

			therm := substitute(thermBuf[col], desc.ThermSaturation)

			if pixelMask[idx]&PixelWater != 0 {
				swir1 := substitute(bandBuf[SWIR1][col], desc.Saturation[SWIR1])

				wtempProb := math.Max(0, (sc.tWtemp-float64(therm))/400)
				brightnessProb := lo.Clamp(float64(swir1)/1100, 0, 1)

				sc.wfinalProb[idx] = float32(100 * wtempProb * brightnessProb)
				sc.finalProb[idx] = 0
				continue
			}

			blue := substitute(bandBuf[BLUE][col], desc.Saturation[BLUE])
			green := substitute(bandBuf[GREEN][col], desc.Saturation[GREEN])
			red := substitute(bandBuf[RED][col], desc.Saturation[RED])
			nir := substitute(bandBuf[NIR][col], desc.Saturation[NIR])
			swir1 := substitute(bandBuf[SWIR1][col], desc.Saturation[SWIR1])

			ndvi := math.Max(0, ratio(float64(nir-red), float64(nir+red)))
			ndsi := math.Max(0, ratio(float64(green-swir1), float64(green+swir1)))

			satuBV := blue >= desc.Saturation[BLUE].Max-1 ||
				green >= desc.Saturation[GREEN].Max-1 ||
				red >= desc.Saturation[RED].Max-1

			visiMean := (float64(blue) + float64(green) + float64(red)) / 3
			var whiteness float64
			switch {
			case satuBV:
				whiteness = 0
			case visiMean == 0:
				whiteness = 100
			default:
				whiteness = (math.Abs(float64(blue)-visiMean) +
					math.Abs(float64(green)-visiMean) +
					math.Abs(float64(red)-visiMean)) / visiMean
			}

			tempProb := math.Max(0, (sc.tTemph-float64(therm))/sc.tempL)
			variProb := 1 - lo.Max([]float64{ndsi, ndvi, whiteness})

			sc.finalProb[idx] = float32(100 * tempProb * variProb)
			sc.wfinalProb[idx] = 0
		}
	}

	return nil
}
