package fmask

import (
	"fmt"
	"log"
)

// Run is the engine's single entry point (spec.md §6). It classifies
// an image streamed from r into the caller-owned pixelMask/confMask,
// returning the clear-pixel percentage and buffered land-temperature
// percentiles. logger receives one line per pass when verbose is set;
// a nil logger silently disables logging regardless of verbose.
//
// On any failure, every buffer the engine owns is released before
// returning; pixelMask/confMask are left in an implementation-defined
// partial state that the caller must discard.
func Run(r RowReader, pixelMask, confMask []uint8, cloudProbThreshold float64, verbose bool, logger *log.Logger) (clearPtm, tTempl, tTemph float64, err error) {
	sc, _, err := runEngine(r, pixelMask, confMask, cloudProbThreshold, verbose, logger)
	if err != nil {
		return 0, 0, 0, err
	}
	return sc.clearPtm, sc.tTempl, sc.tTemph, nil
}

// RunSummary runs the same six-pass classification as Run, and in
// addition returns the per-scene QA summary (SPEC_FULL.md §4) that the
// CLI writes as a JSON sidecar and TileDB group metadata entry. It
// exists alongside Run, rather than replacing it, because spec.md §6
// fixes Run's three-out-parameter signature exactly.
func RunSummary(r RowReader, pixelMask, confMask []uint8, cloudProbThreshold float64, verbose bool, logger *log.Logger) (Summary, error) {
	sc, allCloud, err := runEngine(r, pixelMask, confMask, cloudProbThreshold, verbose, logger)
	if err != nil {
		return Summary{}, err
	}
	return sc.Summary(allCloud), nil
}

// runEngine is the shared orchestration behind Run and RunSummary: it
// validates the caller-owned mask buffers, walks passes 1 through 6 in
// order, and frees every scratch array it owns before returning,
// whichever path it returns through.
func runEngine(r RowReader, pixelMask, confMask []uint8, cloudProbThreshold float64, verbose bool, logger *log.Logger) (*scene, bool, error) {
	desc := r.Descriptor()
	n := desc.Size()

	if len(pixelMask) != n {
		return nil, false, fmt.Errorf("%w: pixel_mask length %d does not match %d pixels", ErrAllocationFailure, len(pixelMask), n)
	}
	if len(confMask) != n {
		return nil, false, fmt.Errorf("%w: conf_mask length %d does not match %d pixels", ErrAllocationFailure, len(confMask), n)
	}

	logf := func(format string, args ...any) {
		if verbose && logger != nil {
			logger.Printf(format, args...)
		}
	}

	sc := newScene(desc)

	logf("fmask: pass 1: spectral classification")
	if perr := runPass1(r, pixelMask, confMask, sc); perr != nil {
		sc.freeClearMask()
		return nil, false, perr
	}

	if sc.clearPtm <= 0.1 {
		logf("fmask: clear_ptm=%.4f <= 0.1, applying all-cloud shortcut", sc.clearPtm)
		sc.tTempl = -1.0
		sc.tTemph = -1.0
		applyAllCloudShortcut(pixelMask, confMask)
		sc.freeClearMask()
		return sc, true, nil
	}

	logf("fmask: pass 2: temperature percentiles")
	if perr := runPass2(r, sc); perr != nil {
		sc.freeClearMask()
		return nil, false, perr
	}

	logf("fmask: pass 3: cloud probability surfaces")
	if perr := runPass3(r, pixelMask, sc); perr != nil {
		sc.freeClearMask()
		sc.freeProbSurfaces()
		return nil, false, perr
	}

	logf("fmask: pass 4: dynamic thresholds and confidence")
	if perr := runPass4(r, pixelMask, confMask, sc, cloudProbThreshold); perr != nil {
		sc.freeClearMask()
		sc.freeProbSurfaces()
		return nil, false, perr
	}

	logf("fmask: pass 5: infrared background reconstruction")
	if perr := runPass5(r, sc); perr != nil {
		sc.freeClearMask()
		sc.freeInfraredRasters()
		return nil, false, perr
	}

	logf("fmask: pass 6: shadow assignment and water refinement")
	if perr := runPass6(r, pixelMask, confMask, sc); perr != nil {
		sc.freeClearMask()
		sc.freeInfraredRasters()
		return nil, false, perr
	}

	return sc, false, nil
}

// applyAllCloudShortcut implements spec.md §4.2: every non-fill pixel
// gets SHADOW iff CLOUD is not set; conf_mask is left undefined for
// non-fill pixels, and set to FILL_PIXEL for fill pixels so invariant
// 1 of spec.md §8 still holds.
func applyAllCloudShortcut(pixelMask, confMask []uint8) {
	for i, pm := range pixelMask {
		if pm&PixelFill != 0 {
			confMask[i] = ConfFillPixel
			continue
		}
		if pm&PixelCloud == 0 {
			pixelMask[i] |= PixelShadow
		} else {
			pixelMask[i] &^= PixelShadow
		}
	}
}
