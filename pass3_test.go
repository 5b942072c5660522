package fmask

import "testing"

func TestRunPass3WaterProbability(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	r.bands[BLUE] = []int16{0}
	r.bands[GREEN] = []int16{0}
	r.bands[RED] = []int16{0}
	r.bands[NIR] = []int16{0}
	r.bands[SWIR1] = []int16{1100}
	r.bands[SWIR2] = []int16{0}
	r.thermal = []int16{0}

	pixelMask := []uint8{PixelWater}
	sc := newScene(desc)
	sc.tWtemp = 400 // (400-0)/400 = 1.0 wtemp_prob

	if err := runPass3(r, pixelMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// brightness_prob = clamp(1100/1100,0,1) = 1.0; wfinal_prob = 100*1*1 = 100
	if sc.wfinalProb[0] != 100 {
		t.Fatalf("expected wfinal_prob=100, got %v", sc.wfinalProb[0])
	}
	if sc.finalProb[0] != 0 {
		t.Fatalf("expected final_prob=0 for a water pixel, got %v", sc.finalProb[0])
	}
}

func TestRunPass3LandProbability(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	r.bands[BLUE] = []int16{400}
	r.bands[GREEN] = []int16{500}
	r.bands[RED] = []int16{600}
	r.bands[NIR] = []int16{3000}
	r.bands[SWIR1] = []int16{1500}
	r.bands[SWIR2] = []int16{800}
	r.thermal = []int16{2100}

	pixelMask := []uint8{0}
	sc := newScene(desc)
	sc.tTempl = 1700
	sc.tTemph = 2900
	sc.tempL = sc.tTemph - sc.tTempl

	if err := runPass3(r, pixelMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.wfinalProb[0] != 0 {
		t.Fatalf("expected wfinal_prob=0 for a land pixel, got %v", sc.wfinalProb[0])
	}
	if sc.finalProb[0] <= 0 {
		t.Fatalf("expected a positive final_prob for a cool clear-land pixel, got %v", sc.finalProb[0])
	}
}

func TestRunPass3SkipsFillPixels(t *testing.T) {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	for b := range r.bands {
		r.bands[b] = []int16{0}
	}
	r.thermal = []int16{0}

	pixelMask := []uint8{PixelFill}
	sc := newScene(desc)

	if err := runPass3(r, pixelMask, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.finalProb[0] != 0 || sc.wfinalProb[0] != 0 {
		t.Fatalf("expected both probability surfaces to stay zero for a fill pixel, got (%v,%v)", sc.finalProb[0], sc.wfinalProb[0])
	}
}
