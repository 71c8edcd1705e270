package pigo

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"

	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/internal/vision"
)

func TestDetectionBox(t *testing.T) {
	got := detectionBox(pigo.Detection{Row: 100, Col: 80, Scale: 40, Q: 12})
	if want := image.Rect(60, 80, 100, 120); got != want {
		t.Errorf("detectionBox = %v, want %v", got, want)
	}
	if got.Dx() != 40 || got.Dy() != 40 {
		t.Errorf("box side = %dx%d, want the detection scale", got.Dx(), got.Dy())
	}
}

func TestImageParams(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 30, 20))
	p := imageParams(gray)
	if p.Rows != 20 || p.Cols != 30 || p.Dim != 30 {
		t.Errorf("params = rows %d cols %d dim %d, want 20 30 30", p.Rows, p.Cols, p.Dim)
	}
	if len(p.Pixels) != 600 {
		t.Errorf("len(Pixels) = %d, want 600", len(p.Pixels))
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(empty dir) error = %v, want os.ErrNotExist", err)
	}
}

func TestRemoteFiles(t *testing.T) {
	files := RemoteFiles()
	if len(files) != 2+len(MouthCascades) {
		t.Fatalf("RemoteFiles = %v", files)
	}
	if files[0] != FaceFinderFile || files[2] != "lps/lp84" {
		t.Errorf("RemoteFiles = %v", files)
	}
}

// cascadeModels loads the cascades checked in under testdata/cascade, laid
// out the way download --cascades writes them.
func cascadeModels(t *testing.T) *Models {
	t.Helper()
	m, err := Load(filepath.Join("testdata", "cascade"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.HasLandmarks() {
		t.Fatal("mouth cascades not loaded")
	}
	return m
}

// portrait decodes testdata/sample.jpg, a single-face photo.
func portrait(t *testing.T) image.Image {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "sample.jpg"))
	if err != nil {
		t.Fatalf("open sample: %v", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	return img
}

func detectPortraitFace(t *testing.T, m *Models, img image.Image) image.Rectangle {
	t.Helper()
	faces, err := m.FaceCascade().DetectFaces(context.Background(), vision.Luma(img), faceqa.FaceCascadeParams(thresholds.Defaults()))
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("found %d faces in a single-face portrait: %v", len(faces), faces)
	}
	return faces[0]
}

func TestFaceCascadePortrait(t *testing.T) {
	m := cascadeModels(t)
	img := portrait(t)
	face := detectPortraitFace(t, m, img)

	if face.Intersect(vision.Luma(img).Bounds()).Empty() {
		t.Errorf("face %v lies outside the image", face)
	}
	if face.Dx() < faceqa.FaceCascadeParams(thresholds.Defaults()).MinSize {
		t.Errorf("face %v is smaller than the minimum size", face)
	}
}

func TestEyeDetectorPortrait(t *testing.T) {
	m := cascadeModels(t)
	img := portrait(t)
	face := detectPortraitFace(t, m, img)

	gray := vision.Luma(img)
	search := faceqa.EyeSearchArea(gray.Bounds().Dx(), gray.Bounds().Dy(), thresholds.Defaults().FaceHeightAdcional)
	upper := gray.SubImage(search).(*image.Gray)

	eyes, err := m.EyeDetector().DetectEyes(context.Background(), upper, face)
	if err != nil {
		t.Fatalf("DetectEyes: %v", err)
	}
	if len(eyes) == 0 {
		t.Fatal("no eye found in the portrait")
	}
	for _, e := range eyes {
		if !e.In(upper.Bounds()) {
			t.Errorf("eye %v outside the search area %v", e, upper.Bounds())
		}
	}
}

func TestLandmarkerPortrait(t *testing.T) {
	m := cascadeModels(t)
	img := portrait(t)
	face := detectPortraitFace(t, m, img)

	lm, found, err := m.Landmarker().MouthLandmarks(context.Background(), img, face)
	if err != nil {
		t.Fatalf("MouthLandmarks: %v", err)
	}
	if !found {
		t.Fatal("mouth landmarks not found in the portrait")
	}
	if w := lm.Left.Dist(lm.Right); w <= 0 {
		t.Errorf("mouth width = %v, want > 0 (landmarks %+v)", w, lm)
	}
	for name, p := range map[string]faceqa.Point{"left": lm.Left, "right": lm.Right, "upper": lm.Upper, "lower": lm.Lower} {
		if p.X <= 0 || p.Y <= 0 {
			t.Errorf("%s landmark = %+v, want inside the image", name, p)
		}
	}
}

func TestCheckerWithPigoBackend(t *testing.T) {
	m := cascadeModels(t)
	img := portrait(t)

	c, err := faceqa.NewChecker(faceqa.Components{
		Cascade:   m.FaceCascade(),
		Eyes:      m.EyeDetector(),
		Landmarks: m.Landmarker(),
	}, faceqa.Options{})
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}

	for i := 0; i < 2; i++ {
		report, err := c.Inspect(context.Background(), img, faceqa.VersionCascade, thresholds.Defaults())
		if err != nil {
			t.Fatalf("Inspect: %v", err)
		}
		if !report.Result.FaceDetected || report.Result.MoreThanOneFace {
			t.Errorf("run %d: result = %+v, want exactly one face", i, report.Result)
		}
		if report.Measurements.SmileStrategy != "landmarks" {
			t.Errorf("run %d: smile strategy = %q, want landmarks", i, report.Measurements.SmileStrategy)
		}
	}
}

func TestFaceCascadeBlankImage(t *testing.T) {
	m := cascadeModels(t)
	gray := image.NewGray(image.Rect(0, 0, 320, 240))
	faces, err := m.FaceCascade().DetectFaces(context.Background(), gray, faceqa.FaceCascadeParams(thresholds.Defaults()))
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("found %d faces in a blank image", len(faces))
	}
}

func TestFaceCascadeTooSmall(t *testing.T) {
	m := cascadeModels(t)
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	faces, err := m.FaceCascade().DetectFaces(context.Background(), gray, faceqa.CascadeParams{ScaleFactor: 1.3, MinSize: 30})
	if err != nil || faces != nil {
		t.Errorf("DetectFaces = %v, %v; want nothing for an image below the minimum size", faces, err)
	}
}

func TestEyeDetectorWithoutFace(t *testing.T) {
	d := (&Models{}).EyeDetector()
	eyes, err := d.DetectEyes(context.Background(), image.NewGray(image.Rect(0, 0, 50, 50)), image.Rectangle{})
	if err != nil || eyes != nil {
		t.Errorf("DetectEyes(empty face) = %v, %v", eyes, err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &Models{}
	if _, err := m.FaceCascade().DetectFaces(ctx, image.NewGray(image.Rect(0, 0, 50, 50)), faceqa.CascadeParams{}); !errors.Is(err, context.Canceled) {
		t.Errorf("DetectFaces error = %v, want context.Canceled", err)
	}
}

func TestLandmarkerNeedsMouthCascades(t *testing.T) {
	if (&Models{}).Landmarker() != nil {
		t.Error("Landmarker must be nil without mouth cascades")
	}
}
