package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/anime-shed/face-inspector-go/internal/batch"
	"github.com/anime-shed/face-inspector-go/internal/service"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

func TestParseAssignments(t *testing.T) {
	patch, err := parseAssignments([]string{"brightness_threshold=110", " min_mouth_width = 25.5"})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	if patch["brightness_threshold"] != 110 || patch["min_mouth_width"] != 25.5 {
		t.Errorf("patch = %v", patch)
	}

	for _, bad := range [][]string{
		{"brightness_threshold"},
		{"=3"},
		{"brightness_threshold=bright"},
		{"brightness_threshold=1", "brightness_threshold=2"},
	} {
		if _, err := parseAssignments(bad); err == nil {
			t.Errorf("parseAssignments(%q) accepted", bad)
		}
	}
}

func TestRefFor(t *testing.T) {
	tests := []struct {
		arg  string
		want service.ImageRef
	}{
		{"photo.jpg", service.ImageRef{Path: "photo.jpg"}},
		{"https://example.com/a.jpg", service.ImageRef{URL: "https://example.com/a.jpg"}},
		{"HTTP://example.com/a.jpg", service.ImageRef{URL: "HTTP://example.com/a.jpg"}},
		{"./http/a.jpg", service.ImageRef{Path: "./http/a.jpg"}},
	}
	for _, tt := range tests {
		if got := refFor(tt.arg); got != tt.want {
			t.Errorf("refFor(%q) = %+v, want %+v", tt.arg, got, tt.want)
		}
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, models.QualityResult{FaceDetected: true, IsSmiling: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "face_detected:") || !strings.HasSuffix(lines[0], "true") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "is_smiling:") || !strings.HasSuffix(lines[3], "true") {
		t.Errorf("smile line = %q", lines[3])
	}
	if !strings.HasSuffix(lines[6], "false") {
		t.Errorf("last line = %q", lines[6])
	}
}

func TestPrintBatch(t *testing.T) {
	good := models.QualityResult{FaceDetected: true, EyesIsGood: true, ContrastIsGood: true,
		BrightnessIsGood: true, FaceIsCentralized: true}
	results := []batch.Result{
		{Name: "a.jpg", Result: good},
		{Name: "b.jpg"},
		{Name: "c.jpg", Err: errors.New("boom"), Error: "boom"},
	}

	var buf bytes.Buffer
	printBatch(&buf, results, batch.Summarize(results))
	out := buf.String()
	for _, want := range []string{"acceptable", "no face", "error: boom", "Total: 3", "Failed: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printBatch(&buf, nil, batch.Summary{})
	if !strings.Contains(buf.String(), "No image files found") {
		t.Errorf("empty batch output = %q", buf.String())
	}
}

func TestPrintThresholds(t *testing.T) {
	var buf bytes.Buffer
	printThresholds(&buf, "config.json", thresholds.Defaults())
	out := buf.String()
	if !strings.HasPrefix(out, "# config.json\n") {
		t.Errorf("header missing:\n%s", out)
	}
	if !strings.Contains(out, "scale_factor_face_cascade") || !strings.Contains(out, "1.3") {
		t.Errorf("scale factor missing:\n%s", out)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "check": false, "batch": false, "download": false, "config": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, ok := range want {
		if !ok {
			t.Errorf("command %s not registered", name)
		}
	}
}
