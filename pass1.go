package fmask

import "math"

// ratio guards a spectral-index division by zero, defaulting to 0.01
// per spec.md §4.1.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0.01
	}
	return num / den
}

// classifyPixel runs the P1 spectral test chain over one already
// fill-checked, saturation-substituted pixel and returns the
// pixel_mask bits (CLOUD/SNOW/WATER, never FILL) and the clear_mask
// bits that follow from the cloud decision.
func classifyPixel(blue, green, red, nir, swir1, swir2, therm int16, desc ImageDescriptor) (pixelMask uint8, clearMask uint8) {
	ndvi := ratio(float64(nir-red), float64(nir+red))
	ndsi := ratio(float64(green-swir1), float64(green+swir1))

	satuBV := blue >= desc.Saturation[BLUE].Max-1 ||
		green >= desc.Saturation[GREEN].Max-1 ||
		red >= desc.Saturation[RED].Max-1

	cloud := ndsi < 0.8-MinSigma &&
		ndvi < 0.8-MinSigma &&
		float64(swir2) > 300+MinSigma &&
		float64(therm) < 2700-MinSigma

	if cloud {
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
		cloud = whiteness < 0.7-MinSigma
	}

	if cloud {
		hot := float64(blue) - 0.5*float64(red) - 800
		cloud = hot > 0+MinSigma || satuBV
	}

	if cloud {
		cloud = swir1 != 0 && float64(nir)/float64(swir1) > 0.75+MinSigma
	}

	snow := ndsi > 0.15+MinSigma &&
		float64(therm) < 1000-MinSigma &&
		float64(nir) > 1100+MinSigma &&
		float64(green) > 1000+MinSigma

	water := (ndvi < 0.01-MinSigma && float64(nir) < 1100-MinSigma) ||
		(ndvi > 0+MinSigma && ndvi < 0.1-MinSigma && float64(nir) < 500-MinSigma)

	if cloud {
		pixelMask |= PixelCloud
	}
	if snow {
		pixelMask |= PixelSnow
	}
	if water {
		pixelMask |= PixelWater
	}

	if cloud {
		return pixelMask, 0
	}

	clearMask = Clear
	if water {
		clearMask |= ClearWater
	} else {
		clearMask |= ClearLand
	}
	return pixelMask, clearMask
}

// runPass1 performs fill detection and the full P1 spectral
// classification over every row, populating pixel_mask and the
// engine-owned clear_mask scratch and accumulating the four scene
// counters (spec.md §4.1).
func runPass1(r RowReader, pixelMask, confMask []uint8, sc *scene) error {
	desc := r.Descriptor()
	s := desc.Cols

	sc.allocClearMask()

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

			blueRaw := bandBuf[BLUE][col]
			greenRaw := bandBuf[GREEN][col]
			redRaw := bandBuf[RED][col]
			nirRaw := bandBuf[NIR][col]
			swir1Raw := bandBuf[SWIR1][col]
			swir2Raw := bandBuf[SWIR2][col]
			thermRaw := thermBuf[col]

			if blueRaw == FillPixel || greenRaw == FillPixel || redRaw == FillPixel ||
				nirRaw == FillPixel || swir1Raw == FillPixel || swir2Raw == FillPixel ||
				thermRaw <= FillPixel {
				pixelMask[idx] = PixelFill
				sc.clearMask[idx] = ClearFill
				continue
			}

			blue := substitute(blueRaw, desc.Saturation[BLUE])
			green := substitute(greenRaw, desc.Saturation[GREEN])
			red := substitute(redRaw, desc.Saturation[RED])
			nir := substitute(nirRaw, desc.Saturation[NIR])
			swir1 := substitute(swir1Raw, desc.Saturation[SWIR1])
			swir2 := substitute(swir2Raw, desc.Saturation[SWIR2])
			therm := substitute(thermRaw, desc.ThermSaturation)

			sc.imageData++

			mask, clear := classifyPixel(blue, green, red, nir, swir1, swir2, therm, desc)
			pixelMask[idx] = mask
			sc.clearMask[idx] = clear

			switch {
			case clear == 0:
				// cloud; not counted as clear
			case clear&ClearWater != 0:
				sc.clear++
				sc.clearWater++
			default:
				sc.clear++
				sc.clearLand++
			}
		}
	}

	if sc.imageData > 0 {
		sc.clearPtm = 100 * float64(sc.clear) / float64(sc.imageData)
		sc.landPtm = 100 * float64(sc.clearLand) / float64(sc.imageData)
		sc.waterPtm = 100 * float64(sc.clearWater) / float64(sc.imageData)
	}

	return nil
}
