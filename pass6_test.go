package fmask

import "testing"

func TestRunPass6AssignsShadowFromResidual(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.bands[NIR] = []int16{100}
	r.bands[SWIR1] = []int16{100}
	r.thermal = []int16{0}

	sc := newScene(desc)
	sc.allocClearMask()
	sc.clearMask[0] = Clear | ClearLand
	sc.allocInfraredRasters()
	sc.filledNir[0] = 1000 // residual 900 > 200
	sc.filledSwir1[0] = 1000

	pixelMask := []uint8{0}
	confMask := make([]uint8, 1)

	if err := runPass6(r, pixelMask, confMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pixelMask[0]&PixelShadow == 0 {
		t.Fatalf("expected SHADOW set for a large infrared residual")
	}
}

func TestRunPass6NoShadowForSmallResidual(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.bands[NIR] = []int16{900}
	r.bands[SWIR1] = []int16{900}
	r.thermal = []int16{0}

	sc := newScene(desc)
	sc.allocClearMask()
	sc.clearMask[0] = Clear | ClearLand
	sc.allocInfraredRasters()
	sc.filledNir[0] = 1000 // residual 100 < 200
	sc.filledSwir1[0] = 1000

	pixelMask := []uint8{0}
	confMask := make([]uint8, 1)

	if err := runPass6(r, pixelMask, confMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pixelMask[0]&PixelShadow != 0 {
		t.Fatalf("expected SHADOW cleared for a small infrared residual")
	}
}

func TestRunPass6ClearsWaterWhenCloudAlsoSet(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.thermal = []int16{0}

	sc := newScene(desc)
	sc.allocClearMask()
	sc.clearMask[0] = Clear | ClearWater
	sc.allocInfraredRasters()

	pixelMask := []uint8{PixelWater | PixelCloud}
	confMask := make([]uint8, 1)

	if err := runPass6(r, pixelMask, confMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pixelMask[0]&PixelWater != 0 {
		t.Fatalf("expected WATER to be cleared when CLOUD is also set (invariant 4)")
	}
}

func TestRunPass6FillPixelSetsConfMaskAndSkips(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.thermal = []int16{0}

	sc := newScene(desc)
	sc.allocClearMask()
	sc.clearMask[0] = ClearFill
	sc.allocInfraredRasters()

	pixelMask := []uint8{PixelFill}
	confMask := make([]uint8, 1)

	if err := runPass6(r, pixelMask, confMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confMask[0] != ConfFillPixel {
		t.Fatalf("expected conf_mask=FILL_PIXEL for a fill pixel, got %v", confMask[0])
	}
	if pixelMask[0] != PixelFill {
		t.Fatalf("expected pixel_mask to remain FILL-only, got %#x", pixelMask[0])
	}
}

func TestRunPass6FreesScratch(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.thermal = []int16{0}

	sc := newScene(desc)
	sc.allocClearMask()
	sc.clearMask[0] = Clear | ClearLand
	sc.allocInfraredRasters()

	pixelMask := []uint8{0}
	confMask := make([]uint8, 1)

	if err := runPass6(r, pixelMask, confMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.clearMask != nil || sc.nirData != nil || sc.filledNir != nil {
		t.Fatal("expected pass6 to free clear_mask and the infrared rasters, its last consumer")
	}
}
