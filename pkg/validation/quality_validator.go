package validation

import (
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

// Severity levels attached to a QualityIssue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// QualityIssue represents a portrait requirement the image failed
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// QualityValidator turns a QualityResult and its measurements into
// human-readable issues and per-check explanations.
type QualityValidator struct {
	thresholds thresholds.Thresholds
}

// NewQualityValidator creates a validator that reports against t.
func NewQualityValidator(t thresholds.Thresholds) *QualityValidator {
	return &QualityValidator{thresholds: t}
}

// ValidatePortrait lists every failed requirement. A missing face is the only
// issue reported when no face was detected, since no other check ran.
func (qv *QualityValidator) ValidatePortrait(result models.QualityResult, m models.Measurements) []QualityIssue {
	if !result.FaceDetected {
		return []QualityIssue{{
			Type:     "face_not_detected",
			Message:  "Face was not detected correctly.",
			Severity: SeverityError,
		}}
	}

	var issues []QualityIssue
	if result.MoreThanOneFace {
		issues = append(issues, QualityIssue{
			Type:        "multiple_faces",
			Message:     "More than one face in image",
			Severity:    SeverityError,
			ActualValue: float64(m.FaceCount),
			Threshold:   1,
		})
	}
	if !result.EyesIsGood {
		issues = append(issues, QualityIssue{
			Type:      "eyes_not_visible",
			Message:   "Eyes are closed or not visible",
			Severity:  SeverityError,
			Threshold: qv.thresholds.EyeAreaThreshold,
		})
	}
	if result.IsSmiling {
		issues = append(issues, QualityIssue{
			Type:        "smile",
			Message:     "Smile detected",
			Severity:    SeverityError,
			ActualValue: m.SmileRatio,
			Threshold:   qv.thresholds.SmileRatioThreshold,
		})
	}
	if !result.ContrastIsGood {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "Image contrast isn't good",
			Severity:    SeverityWarning,
			ActualValue: m.IntensityStdDev,
			Threshold:   qv.thresholds.ContrastThreshold,
		})
	}
	if !result.BrightnessIsGood {
		issues = append(issues, QualityIssue{
			Type:        "low_brightness",
			Message:     "Image brightness isn't good",
			Severity:    SeverityWarning,
			ActualValue: m.MeanBrightness,
			Threshold:   qv.thresholds.BrightnessThreshold,
		})
	}
	if !result.FaceIsCentralized {
		issues = append(issues, QualityIssue{
			Type:        "not_centered",
			Message:     "Face isn't centralized",
			Severity:    SeverityError,
			ActualValue: m.CenterDistance,
			Threshold:   m.CenterTolerance,
		})
	}
	return issues
}

// Checks explains each of the seven verdicts against the threshold it used.
func (qv *QualityValidator) Checks(result models.QualityResult, m models.Measurements) []models.QualityCheckResult {
	t := qv.thresholds
	checks := []models.QualityCheckResult{
		check("face_detected", result.FaceDetected, float64(m.FaceCount), 1,
			"Face detected.", "Face was not detected correctly.", SeverityError),
	}
	if !result.FaceDetected {
		return checks
	}

	return append(checks,
		check("single_face", !result.MoreThanOneFace, float64(m.FaceCount), 1,
			"Only one face detected", "More than one face in image", SeverityError),
		check("eyes", result.EyesIsGood, maxArea(m.EyeContourAreas), t.EyeAreaThreshold,
			"Eyes are clear and visible", "Eyes are closed or not visible", SeverityError),
		check("smile", !result.IsSmiling, m.SmileRatio, t.SmileRatioThreshold,
			"Smile not detected", "Smile detected", SeverityError),
		check("contrast", result.ContrastIsGood, m.IntensityStdDev, t.ContrastThreshold,
			"Image contrast is good", "Image contrast isn't good", SeverityWarning),
		check("brightness", result.BrightnessIsGood, m.MeanBrightness, t.BrightnessThreshold,
			"Image brightness is good", "Image brightness isn't good", SeverityWarning),
		check("centering", result.FaceIsCentralized, m.CenterDistance, m.CenterTolerance,
			"Face is centralized", "Face isn't centralized", SeverityError),
	)
}

func check(name string, passed bool, actual, threshold float64, ok, fail, severity string) models.QualityCheckResult {
	c := models.QualityCheckResult{
		CheckName:      name,
		Passed:         passed,
		ActualValue:    actual,
		ThresholdValue: threshold,
		Message:        ok,
		Severity:       "info",
	}
	if !passed {
		c.Message = fail
		c.Severity = severity
	}
	return c
}

func maxArea(areas []float64) float64 {
	var m float64
	for _, a := range areas {
		if a > m {
			m = a
		}
	}
	return m
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
