package faceqa

const (
	// smileEpsilon keeps the ratio finite for a closed mouth.
	smileEpsilon = 1e-6
	// minSmileRatio: below it the mouth is taller than a grin, read as open or neutral.
	minSmileRatio = 1.1
)

// SmileMeasurement is the geometry behind one smile decision.
type SmileMeasurement struct {
	Width    float64
	Height   float64
	Ratio    float64
	Smiling  bool
	Strategy string
}

// DecideSmile applies the landmark policy in order:
// width below minWidth is not a smile, ratio below 1.1 is not a smile,
// otherwise the face is smiling iff ratio < ratioThreshold.
func DecideSmile(m MouthLandmarks, minWidth, ratioThreshold float64) SmileMeasurement {
	width := m.Left.Dist(m.Right)
	height := m.Upper.Dist(m.Lower)
	s := SmileMeasurement{
		Width:    width,
		Height:   height,
		Ratio:    width / (height + smileEpsilon),
		Strategy: "landmarks",
	}

	switch {
	case s.Width < minWidth:
		s.Smiling = false
	case s.Ratio < minSmileRatio:
		s.Smiling = false
	default:
		s.Smiling = s.Ratio < ratioThreshold
	}
	return s
}
