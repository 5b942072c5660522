package fmask

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ossgeo/go-fmask/percentile"
)

// runPass2 gathers clear-land and clear-water thermal samples and
// derives the buffered land-temperature percentiles and the high
// water-temperature percentile (spec.md §4.3).
func runPass2(r RowReader, sc *scene) error {
	desc := r.Descriptor()
	s := desc.Cols

	sc.landBit = ClearLand
	if sc.landPtm < 0.1 {
		sc.landBit = Clear
	}
	sc.waterBit = ClearWater
	if sc.waterPtm < 0.1 {
		sc.waterBit = Clear
	}

	fTemp := make([]int16, 0, desc.Size())
	fWtemp := make([]int16, 0, desc.Size())

	thermBuf := make([]int16, s)

	for row := 0; row < desc.Rows; row++ {
		if err := r.GetInputThermLine(row, thermBuf); err != nil {
			return wrapThermIoFailure(row, err)
		}

		rowOffset := row * s
		for col := 0; col < s; col++ {
			idx := rowOffset + col
			cm := sc.clearMask[idx]
			if cm&ClearFill != 0 {
				continue
			}

			therm := substitute(thermBuf[col], desc.ThermSaturation)

			if cm&sc.landBit != 0 {
				fTemp = append(fTemp, therm)
			}
			if cm&sc.waterBit != 0 {
				fWtemp = append(fWtemp, therm)
			}
		}
	}

	// domain for each population, as lo.Max/lo.Min over the collected
	// samples rather than tracked during the scan; both return the zero
	// value on an empty slice, which is the "substitute 0" spec.md §4.3
	// calls for when a population is empty.
	minTemp, maxTemp := lo.Min(fTemp), lo.Max(fTemp)
	minWtemp, maxWtemp := lo.Min(fWtemp), lo.Max(fWtemp)

	tTempl, err := percentile.Prctile(fTemp, len(fTemp), minTemp, maxTemp, 17.5)
	if err != nil {
		return fmt.Errorf("%w: t_templ: %v", ErrPercentileFailure, err)
	}
	tTemph, err := percentile.Prctile(fTemp, len(fTemp), minTemp, maxTemp, 82.5)
	if err != nil {
		return fmt.Errorf("%w: t_temph: %v", ErrPercentileFailure, err)
	}
	tWtemp, err := percentile.Prctile(fWtemp, len(fWtemp), minWtemp, maxWtemp, 82.5)
	if err != nil {
		return fmt.Errorf("%w: t_wtemp: %v", ErrPercentileFailure, err)
	}

	sc.tTempl = tTempl - 400
	sc.tTemph = tTemph + 400
	sc.tempL = sc.tTemph - sc.tTempl
	sc.tWtemp = tWtemp

	return nil
}
