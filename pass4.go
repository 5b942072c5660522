package fmask

import (
	"fmt"
	"math"

	"github.com/ossgeo/go-fmask/percentile"
)

// runPass4 derives the dynamic land/water cloud-probability thresholds
// from the P3 surfaces, then assigns confidence and finalizes the
// CLOUD bit (spec.md §4.5).
func runPass4(r RowReader, pixelMask, confMask []uint8, sc *scene, cloudProbThreshold float64) error {
	desc := r.Descriptor()
	s := desc.Cols

	var prob, wprob []float32
	minProb, maxProb := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	minWprob, maxWprob := float32(math.MaxFloat32), float32(-math.MaxFloat32)

	for idx, cm := range sc.clearMask {
		if cm&sc.landBit != 0 {
			v := sc.finalProb[idx]
			prob = append(prob, v)
			if v < minProb {
				minProb = v
			}
			if v > maxProb {
				maxProb = v
			}
		}
		if cm&sc.waterBit != 0 {
			v := sc.wfinalProb[idx]
			wprob = append(wprob, v)
			if v < minWprob {
				minWprob = v
			}
			if v > maxWprob {
				maxWprob = v
			}
		}
	}

	if len(prob) == 0 {
		minProb, maxProb = 0, 0
	}
	if len(wprob) == 0 {
		minWprob, maxWprob = 0, 0
	}

	p, err := percentile.Prctile2(prob, len(prob), minProb, maxProb, 82.5)
	if err != nil {
		return fmt.Errorf("%w: clr_mask: %v", ErrPercentileFailure, err)
	}
	clrMask := p + cloudProbThreshold

	wp, err := percentile.Prctile2(wprob, len(wprob), minWprob, maxWprob, 82.5)
	if err != nil {
		return fmt.Errorf("%w: wclr_mask: %v", ErrPercentileFailure, err)
	}
	wclrMask := wp + cloudProbThreshold

	thermBuf := make([]int16, s)

	for row := 0; row < desc.Rows; row++ {
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

			isCloud := pixelMask[idx]&PixelCloud != 0
			isWater := pixelMask[idx]&PixelWater != 0

			extremeCold := float64(therm) < sc.tTempl+400-3500

			high := (isCloud && !isWater && float64(sc.finalProb[idx]) > clrMask) ||
				(isCloud && isWater && float64(sc.wfinalProb[idx]) > wclrMask) ||
				extremeCold

			med := (isCloud && !isWater && float64(sc.finalProb[idx]) > clrMask-10) ||
				(isCloud && isWater && float64(sc.wfinalProb[idx]) > wclrMask-10)

			switch {
			case high:
				confMask[idx] = ConfHigh
				pixelMask[idx] |= PixelCloud
			case med:
				confMask[idx] = ConfMed
				pixelMask[idx] &^= PixelCloud
			default:
				confMask[idx] = ConfLow
				pixelMask[idx] &^= PixelCloud
			}
		}
	}

	sc.freeProbSurfaces()

	return nil
}
