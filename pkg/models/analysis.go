package models

// QualityResult is the fixed seven-field verdict returned for every checked image.
// It is the only contract shared with callers and serialises to a flat JSON object.
type QualityResult struct {
	FaceDetected      bool `json:"face_detected"`
	MoreThanOneFace   bool `json:"more_than_one_face"`
	EyesIsGood        bool `json:"eyes_is_good"`
	IsSmiling         bool `json:"is_smiling"`
	ContrastIsGood    bool `json:"contrast_is_good"`
	BrightnessIsGood  bool `json:"brightness_is_good"`
	FaceIsCentralized bool `json:"face_is_centralized"`
}

// Rejected returns the all-false verdict used when no face was found.
func Rejected() QualityResult {
	return QualityResult{}
}

// Acceptable reports whether the portrait passes every check: one face, open eyes,
// no smile, good contrast and brightness, centred.
func (r QualityResult) Acceptable() bool {
	return r.FaceDetected &&
		!r.MoreThanOneFace &&
		r.EyesIsGood &&
		!r.IsSmiling &&
		r.ContrastIsGood &&
		r.BrightnessIsGood &&
		r.FaceIsCentralized
}

// Measurements holds the raw values behind each boolean of a QualityResult.
// Fields stay zero when the corresponding analyzer did not run.
type Measurements struct {
	FaceCount        int       `json:"face_count"`
	FaceBox          *Box      `json:"face_box,omitempty"`
	CenteringBox     *Box      `json:"centering_box,omitempty"`
	MeanBrightness   float64   `json:"mean_brightness"`
	IntensityStdDev  float64   `json:"intensity_std_dev"`
	CenterDistance   float64   `json:"center_distance"`
	CenterTolerance  float64   `json:"center_tolerance"`
	EyeRegions       int       `json:"eye_regions"`
	EyeContourAreas  []float64 `json:"eye_contour_areas,omitempty"`
	MouthWidth       float64   `json:"mouth_width"`
	MouthHeight      float64   `json:"mouth_height"`
	SmileRatio       float64   `json:"smile_ratio"`
	LandmarksFound   bool      `json:"landmarks_found"`
	SmileStrategy    string    `json:"smile_strategy,omitempty"`
	DetectorStrategy string    `json:"detector_strategy"`
}

// Box is a face rectangle in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
