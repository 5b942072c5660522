package fmask

// scene holds every scratch array the engine owns across passes. It is
// allocated at entry to the first producing pass and freed (set to nil)
// immediately after its last consumer, per spec.md §3's lifecycle rule.
type scene struct {
	desc ImageDescriptor

	clearMask []uint8 // owned scratch, P1 producer, consumed through P6

	finalProb  []float32 // P3 producer, P4 consumer
	wfinalProb []float32

	nirData       []int16 // P5 producer, P6 consumer
	swir1Data     []int16
	filledNir     []int16
	filledSwir1   []int16

	// P1 scene counters.
	imageData  int
	clear      int
	clearLand  int
	clearWater int

	// P1 end-of-pass percentages; clearPtm is one of Run's
	// out-parameters.
	clearPtm float64
	landPtm  float64
	waterPtm float64

	// landBit/waterBit select which clear_mask bit each later pass
	// treats as its statistic source, per spec.md §4.3.
	landBit  uint8
	waterBit uint8

	// P2 outputs; tTempl/tTemph are also Run's out-parameters.
	tTempl float64
	tTemph float64
	tWtemp float64
	tempL  float64
}

func newScene(desc ImageDescriptor) *scene {
	return &scene{desc: desc}
}

func (s *scene) allocClearMask() {
	s.clearMask = make([]uint8, s.desc.Size())
}

func (s *scene) allocProbSurfaces() {
	n := s.desc.Size()
	s.finalProb = make([]float32, n)
	s.wfinalProb = make([]float32, n)
}

func (s *scene) freeProbSurfaces() {
	s.finalProb = nil
	s.wfinalProb = nil
}

func (s *scene) allocInfraredRasters() {
	n := s.desc.Size()
	s.nirData = make([]int16, n)
	s.swir1Data = make([]int16, n)
	s.filledNir = make([]int16, n)
	s.filledSwir1 = make([]int16, n)
}

func (s *scene) freeInfraredRasters() {
	s.nirData = nil
	s.swir1Data = nil
	s.filledNir = nil
	s.filledSwir1 = nil
}

func (s *scene) freeClearMask() {
	s.clearMask = nil
}

// Summary is the per-scene QA sidecar supplementing the two masks
// (SPEC_FULL.md §4), analogous in spirit to the teacher's QualityInfo.
type Summary struct {
	ImageData  int `json:"image_data"`
	Clear      int `json:"clear"`
	ClearLand  int `json:"clear_land"`
	ClearWater int `json:"clear_water"`

	ClearPtm float64 `json:"clear_ptm"`
	LandPtm  float64 `json:"land_ptm"`
	WaterPtm float64 `json:"water_ptm"`

	TTempl float64 `json:"t_templ"`
	TTemph float64 `json:"t_temph"`
	TWtemp float64 `json:"t_wtemp,omitempty"`

	AllCloud bool `json:"all_cloud"`
}

// Summary snapshots the scene's scan-then-summarize statistics, in the
// shape of the teacher's QInfo() pass over ping metadata.
func (s *scene) Summary(allCloud bool) Summary {
	return Summary{
		ImageData:  s.imageData,
		Clear:      s.clear,
		ClearLand:  s.clearLand,
		ClearWater: s.clearWater,
		ClearPtm:   s.clearPtm,
		LandPtm:    s.landPtm,
		WaterPtm:   s.waterPtm,
		TTempl:     s.tTempl,
		TTemph:     s.tTemph,
		TWtemp:     s.tWtemp,
		AllCloud:   allCloud,
	}
}
