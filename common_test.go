package fmask

// fakeReader is a minimal in-package RowReader test double (memio
// can't be imported here: it imports this package). Each band and the
// thermal channel is a full row-major L*S plane.
type fakeReader struct {
	desc    ImageDescriptor
	bands   [numReflectiveBands][]int16
	thermal []int16
}

func (f *fakeReader) Descriptor() ImageDescriptor { return f.desc }

func (f *fakeReader) GetInputLine(band BandIndex, row int, dst []int16) error {
	s := f.desc.Cols
	copy(dst, f.bands[band][row*s:row*s+s])
	return nil
}

func (f *fakeReader) GetInputThermLine(row int, dst []int16) error {
	s := f.desc.Cols
	copy(dst, f.thermal[row*s:row*s+s])
	return nil
}

// testDescriptor returns an ImageDescriptor sized rows x cols whose
// saturation pairs are set high enough (10000) that no test fixture
// value trips satuBV by accident.
func testDescriptor(rows, cols int) ImageDescriptor {
	var d ImageDescriptor
	d.Rows = rows
	d.Cols = cols
	for b := range d.Saturation {
		d.Saturation[b] = SaturationPair{Ref: 20000, Max: 10000}
	}
	d.ThermSaturation = SaturationPair{Ref: 20000, Max: 10000}
	return d
}

// fillPlane builds an L*S plane with every pixel set to v.
func fillPlane(rows, cols int, v int16) []int16 {
	p := make([]int16, rows*cols)
	for i := range p {
		p[i] = v
	}
	return p
}

// singlePixelReader builds a 1x1 scene from the given band values.
func singlePixelReader(blue, green, red, nir, swir1, swir2, therm int16) *fakeReader {
	desc := testDescriptor(1, 1)
	r := &fakeReader{desc: desc}
	r.bands[BLUE] = []int16{blue}
	r.bands[GREEN] = []int16{green}
	r.bands[RED] = []int16{red}
	r.bands[NIR] = []int16{nir}
	r.bands[SWIR1] = []int16{swir1}
	r.bands[SWIR2] = []int16{swir2}
	r.thermal = []int16{therm}
	return r
}
