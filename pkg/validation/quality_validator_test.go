package validation

import (
	"testing"

	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

func goodResult() models.QualityResult {
	return models.QualityResult{
		FaceDetected:      true,
		EyesIsGood:        true,
		ContrastIsGood:    true,
		BrightnessIsGood:  true,
		FaceIsCentralized: true,
	}
}

func TestValidatePortrait_Acceptable(t *testing.T) {
	validator := NewQualityValidator(thresholds.Defaults())

	issues := validator.ValidatePortrait(goodResult(), models.Measurements{FaceCount: 1})
	if len(issues) != 0 {
		t.Errorf("Expected no issues for an acceptable portrait, got: %v", issues)
	}
	if validator.HasCriticalIssues(issues) {
		t.Error("Expected no critical issues")
	}
}

func TestValidatePortrait_NoFace(t *testing.T) {
	validator := NewQualityValidator(thresholds.Defaults())

	issues := validator.ValidatePortrait(models.Rejected(), models.Measurements{})
	if len(issues) != 1 {
		t.Fatalf("Expected exactly one issue, got %d", len(issues))
	}
	if issues[0].Type != "face_not_detected" {
		t.Errorf("Expected face_not_detected, got %s", issues[0].Type)
	}
}

func TestValidatePortrait_EachFailure(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.QualityResult)
		issueType string
		critical  bool
	}{
		{"multiple faces", func(r *models.QualityResult) { r.MoreThanOneFace = true }, "multiple_faces", true},
		{"eyes closed", func(r *models.QualityResult) { r.EyesIsGood = false }, "eyes_not_visible", true},
		{"smiling", func(r *models.QualityResult) { r.IsSmiling = true }, "smile", true},
		{"low contrast", func(r *models.QualityResult) { r.ContrastIsGood = false }, "low_contrast", false},
		{"dark", func(r *models.QualityResult) { r.BrightnessIsGood = false }, "low_brightness", false},
		{"off centre", func(r *models.QualityResult) { r.FaceIsCentralized = false }, "not_centered", true},
	}

	validator := NewQualityValidator(thresholds.Defaults())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := goodResult()
			tt.mutate(&result)

			issues := validator.ValidatePortrait(result, models.Measurements{FaceCount: 2})
			if len(issues) != 1 {
				t.Fatalf("Expected one issue, got %v", issues)
			}
			if issues[0].Type != tt.issueType {
				t.Errorf("Expected %s, got %s", tt.issueType, issues[0].Type)
			}
			if got := validator.HasCriticalIssues(issues); got != tt.critical {
				t.Errorf("HasCriticalIssues = %v, want %v", got, tt.critical)
			}
		})
	}
}

func TestChecks(t *testing.T) {
	validator := NewQualityValidator(thresholds.Defaults())

	checks := validator.Checks(models.Rejected(), models.Measurements{})
	if len(checks) != 1 || checks[0].Passed {
		t.Fatalf("Expected a single failed face check, got %+v", checks)
	}

	result := goodResult()
	result.BrightnessIsGood = false
	checks = validator.Checks(result, models.Measurements{FaceCount: 1, MeanBrightness: 80, EyeContourAreas: []float64{500, 50}})
	if len(checks) != 7 {
		t.Fatalf("Expected 7 checks, got %d", len(checks))
	}
	for _, c := range checks {
		switch c.CheckName {
		case "brightness":
			if c.Passed || c.ActualValue != 80 || c.ThresholdValue != 120 {
				t.Errorf("unexpected brightness check: %+v", c)
			}
		case "eyes":
			if !c.Passed || c.ActualValue != 500 {
				t.Errorf("unexpected eyes check: %+v", c)
			}
		default:
			if !c.Passed {
				t.Errorf("check %s should pass: %+v", c.CheckName, c)
			}
		}
	}
}

func TestConvertIssuesToMessages(t *testing.T) {
	validator := NewQualityValidator(thresholds.Defaults())
	issues := []QualityIssue{{Message: "Smile detected"}, {Message: "Face isn't centralized"}}

	messages := validator.ConvertIssuesToMessages(issues)
	if len(messages) != 2 || messages[0] != "Smile detected" {
		t.Errorf("unexpected messages: %v", messages)
	}
}
