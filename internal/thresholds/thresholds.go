// Package thresholds holds the named numeric limits used by the face checks.
//
// A Thresholds value is immutable once handed out: analyzers receive it by
// value and the Store only ever swaps whole values.
package thresholds

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	KeyScaleFactorFaceCascade  = "scale_factor_face_cascade"
	KeyMinNeighborsFaceCascade = "min_neighbors_face_cascade"
	KeyMinSizeFaceCascade      = "min_size_face_cascade"
	KeyBrightnessThreshold     = "brightness_threshold"
	KeyContrastThreshold       = "contrast_threshold"
	KeyFaceCenterThreshold     = "face_center_threshold"
	KeyEyeAreaThreshold        = "eye_area_threshold"
	KeyFaceHeightAdcional      = "face_height_adcional"
	KeySmileRatioThreshold     = "smile_ratio_threshold"
	KeyMinMouthWidth           = "min_mouth_width"
	KeySmileMinNeighbors       = "smile_min_neighbors"
)

// RequiredKeys must all be present in a threshold file loaded in strict mode.
var RequiredKeys = []string{
	KeyScaleFactorFaceCascade,
	KeyMinNeighborsFaceCascade,
	KeyMinSizeFaceCascade,
	KeyBrightnessThreshold,
	KeyContrastThreshold,
	KeyFaceCenterThreshold,
	KeyEyeAreaThreshold,
	KeyFaceHeightAdcional,
	KeySmileRatioThreshold,
	KeyMinMouthWidth,
}

// defaultSmileMinNeighbors matches the neighbour count of the cascade smile detector.
const defaultSmileMinNeighbors = 40

// ErrMissingKey is wrapped by FromMap for every absent required key.
var ErrMissingKey = errors.New("missing threshold")

// ErrInvalidThresholds wraps every rejected Store update.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// ErrUnknownKey is returned when a patch names a threshold that does not exist.
var ErrUnknownKey = errors.New("unknown threshold")

type Thresholds struct {
	ScaleFactorFaceCascade  float64
	MinNeighborsFaceCascade int
	MinSizeFaceCascade      int
	BrightnessThreshold     float64
	ContrastThreshold       float64
	// FaceCenterThreshold is a fraction of the image height.
	FaceCenterThreshold float64
	// EyeAreaThreshold is the minimum contour area in pixels for an open eye.
	EyeAreaThreshold float64
	// FaceHeightAdcional is added to the image height before halving it to
	// bound the eye search area.
	FaceHeightAdcional  int
	SmileRatioThreshold float64
	MinMouthWidth       float64
	SmileMinNeighbors   int
}

// Defaults is the explicit degraded configuration. It is never substituted
// silently for a broken file; callers opt in.
func Defaults() Thresholds {
	return Thresholds{
		ScaleFactorFaceCascade:  1.3,
		MinNeighborsFaceCascade: 5,
		MinSizeFaceCascade:      30,
		BrightnessThreshold:     120,
		ContrastThreshold:       70,
		FaceCenterThreshold:     0.25,
		EyeAreaThreshold:        400,
		FaceHeightAdcional:      20,
		SmileRatioThreshold:     1.8,
		MinMouthWidth:           40,
		SmileMinNeighbors:       defaultSmileMinNeighbors,
	}
}

// FromMap builds Thresholds from a flat key/value mapping. Every required key
// must be present; unknown keys are rejected so typos do not go unnoticed.
func FromMap(values map[string]float64) (Thresholds, error) {
	var missing []error
	for _, key := range RequiredKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingKey, key))
		}
	}
	if len(missing) > 0 {
		return Thresholds{}, errors.Join(missing...)
	}

	t := Thresholds{SmileMinNeighbors: defaultSmileMinNeighbors}
	if err := t.apply(values); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// ToMap returns the persisted representation.
func (t Thresholds) ToMap() map[string]float64 {
	return map[string]float64{
		KeyScaleFactorFaceCascade:  t.ScaleFactorFaceCascade,
		KeyMinNeighborsFaceCascade: float64(t.MinNeighborsFaceCascade),
		KeyMinSizeFaceCascade:      float64(t.MinSizeFaceCascade),
		KeyBrightnessThreshold:     t.BrightnessThreshold,
		KeyContrastThreshold:       t.ContrastThreshold,
		KeyFaceCenterThreshold:     t.FaceCenterThreshold,
		KeyEyeAreaThreshold:        t.EyeAreaThreshold,
		KeyFaceHeightAdcional:      float64(t.FaceHeightAdcional),
		KeySmileRatioThreshold:     t.SmileRatioThreshold,
		KeyMinMouthWidth:           t.MinMouthWidth,
		KeySmileMinNeighbors:       float64(t.SmileMinNeighbors),
	}
}

// With returns a copy with the patched values applied and validated.
func (t Thresholds) With(patch map[string]float64) (Thresholds, error) {
	next := t
	if err := next.apply(patch); err != nil {
		return t, err
	}
	if err := next.Validate(); err != nil {
		return t, err
	}
	return next, nil
}

func (t *Thresholds) apply(values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := values[key]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("threshold %s: value %v is not finite", key, v)
		}
		switch key {
		case KeyScaleFactorFaceCascade:
			t.ScaleFactorFaceCascade = v
		case KeyMinNeighborsFaceCascade:
			t.MinNeighborsFaceCascade = int(math.Round(v))
		case KeyMinSizeFaceCascade:
			t.MinSizeFaceCascade = int(math.Round(v))
		case KeyBrightnessThreshold:
			t.BrightnessThreshold = v
		case KeyContrastThreshold:
			t.ContrastThreshold = v
		case KeyFaceCenterThreshold:
			t.FaceCenterThreshold = v
		case KeyEyeAreaThreshold:
			t.EyeAreaThreshold = v
		case KeyFaceHeightAdcional:
			t.FaceHeightAdcional = int(math.Round(v))
		case KeySmileRatioThreshold:
			t.SmileRatioThreshold = v
		case KeyMinMouthWidth:
			t.MinMouthWidth = v
		case KeySmileMinNeighbors:
			t.SmileMinNeighbors = int(math.Round(v))
		default:
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}
	return nil
}

// Validate rejects values no detector or analyzer can work with.
func (t Thresholds) Validate() error {
	var errs []error
	if t.ScaleFactorFaceCascade <= 1 {
		errs = append(errs, fmt.Errorf("%s must be > 1 (got %v)", KeyScaleFactorFaceCascade, t.ScaleFactorFaceCascade))
	}
	if t.MinNeighborsFaceCascade < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %d)", KeyMinNeighborsFaceCascade, t.MinNeighborsFaceCascade))
	}
	if t.MinSizeFaceCascade < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", KeyMinSizeFaceCascade, t.MinSizeFaceCascade))
	}
	if t.BrightnessThreshold < 0 || t.BrightnessThreshold > 255 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 255] (got %v)", KeyBrightnessThreshold, t.BrightnessThreshold))
	}
	if t.ContrastThreshold < 0 || t.ContrastThreshold > 128 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 128] (got %v)", KeyContrastThreshold, t.ContrastThreshold))
	}
	if t.FaceCenterThreshold <= 0 || t.FaceCenterThreshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be within (0, 1] (got %v)", KeyFaceCenterThreshold, t.FaceCenterThreshold))
	}
	if t.EyeAreaThreshold < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %v)", KeyEyeAreaThreshold, t.EyeAreaThreshold))
	}
	if t.SmileRatioThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%s must be > 0 (got %v)", KeySmileRatioThreshold, t.SmileRatioThreshold))
	}
	if t.MinMouthWidth < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %v)", KeyMinMouthWidth, t.MinMouthWidth))
	}
	if t.SmileMinNeighbors < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %d)", KeySmileMinNeighbors, t.SmileMinNeighbors))
	}
	return errors.Join(errs...)
}
