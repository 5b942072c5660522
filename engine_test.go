package fmask

import (
	"errors"
	"testing"
)

func TestRunAllFillImage(t *testing.T) {
	r := &fakeReader{desc: testDescriptor(1, 1)}
	for b := range r.bands {
		r.bands[b] = []int16{FillPixel}
	}
	r.thermal = []int16{FillPixel}

	pixelMask := make([]uint8, 1)
	confMask := make([]uint8, 1)

	clearPtm, tTempl, tTemph, err := Run(r, pixelMask, confMask, 22.5, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clearPtm != 0 {
		t.Fatalf("expected clear_ptm=0, got %v", clearPtm)
	}
	if tTempl != -1 || tTemph != -1 {
		t.Fatalf("expected t_templ=t_temph=-1 in the all-cloud shortcut, got (%v,%v)", tTempl, tTemph)
	}
	if pixelMask[0] != PixelFill {
		t.Fatalf("expected pixel_mask=FILL, got %#x", pixelMask[0])
	}
	if confMask[0] != ConfFillPixel {
		t.Fatalf("expected conf_mask=FILL_PIXEL, got %v", confMask[0])
	}
}

// buildUniformScene constructs an L*S scene where every pixel is an
// identical clear-land vegetation sample, so P1's clear_ptm comfortably
// clears the 0.1% all-cloud shortcut and the full six-pass pipeline
// runs to completion.
func buildUniformScene(rows, cols int) *fakeReader {
	n := rows * cols
	r := &fakeReader{desc: testDescriptor(rows, cols)}
	r.bands[BLUE] = fillPlane(rows, cols, 400)
	r.bands[GREEN] = fillPlane(rows, cols, 500)
	r.bands[RED] = fillPlane(rows, cols, 600)
	r.bands[NIR] = fillPlane(rows, cols, 3000)
	r.bands[SWIR1] = fillPlane(rows, cols, 1500)
	r.bands[SWIR2] = fillPlane(rows, cols, 800)
	r.thermal = fillPlane(rows, cols, 2500)
	_ = n
	return r
}

func TestRunUniformClearSceneNoCloud(t *testing.T) {
	r := buildUniformScene(4, 4)
	n := r.desc.Size()
	pixelMask := make([]uint8, n)
	confMask := make([]uint8, n)

	clearPtm, tTempl, tTemph, err := Run(r, pixelMask, confMask, 22.5, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clearPtm != 100 {
		t.Fatalf("expected clear_ptm=100, got %v", clearPtm)
	}
	if tTemph < tTempl {
		t.Fatalf("invariant 6 violated: t_temph (%v) < t_templ (%v)", tTemph, tTempl)
	}
	for i := range pixelMask {
		if pixelMask[i]&PixelCloud != 0 {
			t.Fatalf("pixel %d: expected no CLOUD in a uniform clear-land scene, got %#x", i, pixelMask[i])
		}
		if confMask[i] != ConfLow && confMask[i] != ConfMed {
			t.Fatalf("pixel %d: expected a non-cloud confidence, got %v", i, confMask[i])
		}
	}
}

func TestRunInvariantFillImpliesNoOtherBitsAndFillConf(t *testing.T) {
	r := buildUniformScene(2, 2)
	// punch a single fill pixel into the middle of an otherwise clear scene
	for b := range r.bands {
		r.bands[b][1] = FillPixel
	}
	r.thermal[1] = FillPixel

	n := r.desc.Size()
	pixelMask := make([]uint8, n)
	confMask := make([]uint8, n)

	if _, _, _, err := Run(r, pixelMask, confMask, 22.5, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pixelMask[1] != PixelFill {
		t.Fatalf("invariant 1 violated: FILL pixel has extra bits set: %#x", pixelMask[1])
	}
	if confMask[1] != ConfFillPixel {
		t.Fatalf("invariant 1 violated: FILL pixel conf_mask != FILL_PIXEL, got %v", confMask[1])
	}
}

func TestRunInvariantConfidenceImpliesCloudBit(t *testing.T) {
	r := buildUniformScene(4, 4)
	n := r.desc.Size()
	pixelMask := make([]uint8, n)
	confMask := make([]uint8, n)

	if _, _, _, err := Run(r, pixelMask, confMask, 22.5, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range pixelMask {
		switch confMask[i] {
		case ConfHigh:
			if pixelMask[i]&PixelCloud == 0 {
				t.Fatalf("pixel %d: invariant 3 violated: HIGH confidence without CLOUD", i)
			}
		case ConfMed, ConfLow:
			if pixelMask[i]&PixelCloud != 0 {
				t.Fatalf("pixel %d: invariant 3 violated: MED/LOW confidence with CLOUD set", i)
			}
		}
	}
}

func TestRunInvariantWaterAndCloudMutuallyExclusive(t *testing.T) {
	r := buildUniformScene(4, 4)
	n := r.desc.Size()
	pixelMask := make([]uint8, n)
	confMask := make([]uint8, n)

	if _, _, _, err := Run(r, pixelMask, confMask, 22.5, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range pixelMask {
		if pixelMask[i]&PixelWater != 0 && pixelMask[i]&PixelCloud != 0 {
			t.Fatalf("pixel %d: invariant 4 violated: WATER and CLOUD both set", i)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() ([]uint8, []uint8, float64) {
		r := buildUniformScene(4, 4)
		n := r.desc.Size()
		pixelMask := make([]uint8, n)
		confMask := make([]uint8, n)
		clearPtm, _, _, err := Run(r, pixelMask, confMask, 22.5, false, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return pixelMask, confMask, clearPtm
	}

	pm1, cm1, ptm1 := run()
	pm2, cm2, ptm2 := run()

	if ptm1 != ptm2 {
		t.Fatalf("clear_ptm not deterministic: %v vs %v", ptm1, ptm2)
	}
	for i := range pm1 {
		if pm1[i] != pm2[i] || cm1[i] != cm2[i] {
			t.Fatalf("pixel %d not deterministic: pixel_mask %#x/%#x conf_mask %v/%v", i, pm1[i], pm2[i], cm1[i], cm2[i])
		}
	}
}

func TestRunRejectsMismatchedBufferSizes(t *testing.T) {
	r := buildUniformScene(2, 2)

	_, _, _, err := Run(r, make([]uint8, 1), make([]uint8, 4), 22.5, false, nil)
	if !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for a short pixel_mask, got %v", err)
	}

	_, _, _, err = Run(r, make([]uint8, 4), make([]uint8, 1), 22.5, false, nil)
	if !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for a short conf_mask, got %v", err)
	}
}

func TestRunSummaryMatchesRun(t *testing.T) {
	r1 := buildUniformScene(3, 3)
	r2 := buildUniformScene(3, 3)
	n := r1.desc.Size()

	pixelMask1 := make([]uint8, n)
	confMask1 := make([]uint8, n)
	clearPtm, tTempl, tTemph, err := Run(r1, pixelMask1, confMask1, 22.5, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pixelMask2 := make([]uint8, n)
	confMask2 := make([]uint8, n)
	summary, err := RunSummary(r2, pixelMask2, confMask2, 22.5, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ClearPtm != clearPtm || summary.TTempl != tTempl || summary.TTemph != tTemph {
		t.Fatalf("RunSummary disagrees with Run: (%v,%v,%v) vs (%v,%v,%v)",
			summary.ClearPtm, summary.TTempl, summary.TTemph, clearPtm, tTempl, tTemph)
	}
	for i := range pixelMask1 {
		if pixelMask1[i] != pixelMask2[i] || confMask1[i] != confMask2[i] {
			t.Fatalf("pixel %d: Run and RunSummary produced different masks", i)
		}
	}
}
