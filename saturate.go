package fmask

// substitute replaces a saturated reflective or thermal sample with its configured
// replacement value. Applied lazily, once per row, before any
// arithmetic — never as a whole-image pre-pass — so that saturated
// values never pollute fill detection upstream of this call.
func substitute(v int16, pair SaturationPair) int16 {
	if v == pair.Ref {
		return pair.Max
	}
	return v
}

// substituteRow applies substitute in place across a reused row buffer.
func substituteRow(buf []int16, pair SaturationPair) {
	for i, v := range buf {
		buf[i] = substitute(v, pair)
	}
}
