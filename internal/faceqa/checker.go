// Package faceqa decides whether a photograph is an acceptable ID-style
// portrait: exactly one centred, well lit, non-smiling face with open eyes.
//
// A check runs in two phases. A Locator finds faces with the requested
// strategy; when none is found every verdict is false and nothing else runs.
// Otherwise five analyzers run in a fixed order on the same image: eyes,
// smile, contrast, brightness and centering. Centering always uses boxes from
// the classical cascade, whichever strategy found the face.
package faceqa

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

// Components are the detectors a Checker drives. Cascade and Eyes are
// required. Network enables VersionNeural. Landmarks is the canonical smile
// backend; Smiles is used only when Landmarks is nil.
type Components struct {
	Cascade   FaceCascade
	Network   FaceNetwork
	Eyes      EyeDetector
	Landmarks Landmarker
	Smiles    SmileCascade
}

// Options control the debug side channel.
type Options struct {
	// Sink receives one annotated image per analyzer. Nil disables debug output.
	Sink DebugSink
	// NamespaceDebug names artifacts after the invocation id instead of
	// overwriting one fixed file per analyzer.
	NamespaceDebug bool
}

// Checker runs face checks. It holds no per-call state and is safe for
// concurrent use when its components are.
type Checker struct {
	locators  map[Version]Locator
	cascade   FaceCascade
	eyes      EyeDetector
	landmarks Landmarker
	smiles    SmileCascade
	opts      Options
}

func NewChecker(c Components, opts Options) (*Checker, error) {
	if c.Cascade == nil {
		return nil, errors.New("faceqa: face cascade is required")
	}
	if c.Eyes == nil {
		return nil, errors.New("faceqa: eye detector is required")
	}

	locators := map[Version]Locator{
		VersionCascade: NewCascadeLocator(c.Cascade),
	}
	if c.Network != nil {
		locators[VersionNeural] = NewNeuralLocator(c.Network)
	}

	return &Checker{
		locators:  locators,
		cascade:   c.Cascade,
		eyes:      c.Eyes,
		landmarks: c.Landmarks,
		smiles:    c.Smiles,
		opts:      opts,
	}, nil
}

// Supports reports whether v can be served.
func (c *Checker) Supports(v Version) bool {
	_, ok := c.locators[v]
	return ok
}

// Check returns the seven verdicts for img.
func (c *Checker) Check(ctx context.Context, img image.Image, v Version, t thresholds.Thresholds) (models.QualityResult, error) {
	report, err := c.Inspect(ctx, img, v, t)
	if err != nil {
		return models.QualityResult{}, err
	}
	return report.Result, nil
}

// Inspect is Check plus the measurements behind every verdict.
func (c *Checker) Inspect(ctx context.Context, img image.Image, v Version, t thresholds.Thresholds) (Report, error) {
	locator, ok := c.locators[v]
	if !ok {
		if v == VersionNeural {
			return Report{}, fmt.Errorf("%w: %s", ErrStrategyUnavailable, v)
		}
		return Report{}, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
	}

	run := &invocation{
		checker: c,
		frame:   NewFrame(img),
		t:       t,
		report: Report{
			InvocationID: uuid.NewString(),
			Version:      v,
		},
	}
	run.log = logger.WithInvocation(run.report.InvocationID).WithField("version", v.String())
	run.report.Measurements.DetectorStrategy = v.String()

	if err := run.locate(ctx, locator); err != nil {
		return Report{}, err
	}
	if !run.report.Result.FaceDetected {
		run.log.Debug("No face detected, rejecting")
		run.report.Result = models.Rejected()
		return run.report, nil
	}

	stages := []func(context.Context) error{
		run.checkEyes,
		run.checkSmile,
		run.checkContrast,
		run.checkBrightness,
		run.checkCentering,
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if err := stage(ctx); err != nil {
			return Report{}, err
		}
	}

	run.log.WithFields(logrus.Fields{
		"faces":      run.report.Measurements.FaceCount,
		"acceptable": run.report.Result.Acceptable(),
	}).Debug("Face check completed")
	return run.report, nil
}

// invocation carries the state of one Inspect call.
type invocation struct {
	checker *Checker
	frame   *Frame
	t       thresholds.Thresholds
	face    image.Rectangle
	report  Report
	log     *logrus.Entry

	intensityDone bool
}

func (r *invocation) locate(ctx context.Context, locator Locator) error {
	outcome, err := locator.Locate(ctx, r.frame, r.t)
	if err != nil {
		return err
	}
	r.report.Result.FaceDetected = outcome.FaceDetected
	r.report.Result.MoreThanOneFace = outcome.MoreThanOneFace
	r.report.Faces = outcome.Boxes
	r.report.Measurements.FaceCount = len(outcome.Boxes)
	if outcome.FaceDetected {
		r.face = outcome.Boxes[0]
		r.report.Measurements.FaceBox = toBox(r.face)
	}
	return nil
}

func (r *invocation) checkEyes(ctx context.Context) error {
	search := EyeSearchArea(r.frame.Width(), r.frame.Height(), r.t.FaceHeightAdcional)
	var eyes []image.Rectangle
	if upper := cropGray(r.frame.Gray, search); upper != nil {
		found, err := r.checker.eyes.DetectEyes(ctx, upper, r.face)
		if err != nil {
			return fmt.Errorf("eye detection: %w", err)
		}
		// search is anchored at the origin, so crop coordinates are image coordinates
		eyes = LargestEyes(found)
	}

	perEye := eyeContourAreas(r.frame.Gray, eyes)
	r.report.Result.EyesIsGood = EyesAreGood(perEye, r.t.EyeAreaThreshold)
	r.report.Measurements.EyeRegions = len(eyes)
	for _, areas := range perEye {
		r.report.Measurements.EyeContourAreas = append(r.report.Measurements.EyeContourAreas, maxOf(areas))
	}

	r.emit(ctx, PrefixEyes, func() image.Image {
		return renderEyes(r.frame, search, eyes, perEye, r.t.EyeAreaThreshold)
	})
	return nil
}

func (r *invocation) checkSmile(ctx context.Context) error {
	var (
		s      SmileMeasurement
		lm     *MouthLandmarks
		smiles []image.Rectangle
	)

	switch {
	case r.checker.landmarks != nil:
		m, found, err := r.checker.landmarks.MouthLandmarks(ctx, r.frame.Color, r.face)
		if err != nil {
			return fmt.Errorf("mouth landmarks: %w", err)
		}
		r.report.Measurements.LandmarksFound = found
		if found {
			lm = &m
			s = DecideSmile(m, r.t.MinMouthWidth, r.t.SmileRatioThreshold)
		} else {
			s = SmileMeasurement{Strategy: "landmarks"}
		}
	case r.checker.smiles != nil:
		s = SmileMeasurement{Strategy: "cascade"}
		area := r.face.Intersect(r.frame.Gray.Bounds())
		if roi := cropGray(r.frame.Gray, area); roi != nil {
			found, err := r.checker.smiles.DetectSmiles(ctx, roi, r.t.SmileMinNeighbors)
			if err != nil {
				return fmt.Errorf("smile detection: %w", err)
			}
			for _, sm := range found {
				smiles = append(smiles, sm.Add(area.Min))
			}
			s.Smiling = len(found) > 0
		}
	default:
		s = SmileMeasurement{Strategy: "none"}
	}

	r.report.Result.IsSmiling = s.Smiling
	r.report.Measurements.MouthWidth = s.Width
	r.report.Measurements.MouthHeight = s.Height
	r.report.Measurements.SmileRatio = s.Ratio
	r.report.Measurements.SmileStrategy = s.Strategy

	r.emit(ctx, PrefixSmile, func() image.Image {
		return renderSmile(r.frame, r.face, s, lm, smiles)
	})
	return nil
}

func (r *invocation) checkContrast(ctx context.Context) error {
	r.measureIntensity()
	std := r.report.Measurements.IntensityStdDev
	ok := ContrastIsGood(std, r.t.ContrastThreshold)
	r.report.Result.ContrastIsGood = ok

	r.emit(ctx, PrefixContrast, func() image.Image {
		return renderIntensity(r.frame, "contrast", std, r.t.ContrastThreshold, ok)
	})
	return nil
}

func (r *invocation) checkBrightness(ctx context.Context) error {
	r.measureIntensity()
	mean := r.report.Measurements.MeanBrightness
	ok := BrightnessIsGood(mean, r.t.BrightnessThreshold)
	r.report.Result.BrightnessIsGood = ok

	r.emit(ctx, PrefixBrightness, func() image.Image {
		return renderIntensity(r.frame, "brightness", mean, r.t.BrightnessThreshold, ok)
	})
	return nil
}

// measureIntensity fills mean and deviation once for both intensity checks.
func (r *invocation) measureIntensity() {
	if r.intensityDone {
		return
	}
	m := &r.report.Measurements
	m.MeanBrightness, m.IntensityStdDev = IntensityStats(r.frame.Gray)
	r.intensityDone = true
}

func (r *invocation) checkCentering(ctx context.Context) error {
	boxes := r.report.Faces
	if r.report.Version != VersionCascade {
		// Same cascade and parameters as strategy 1, so a cascade check
		// already holds these boxes.
		var err error
		boxes, err = r.checker.cascade.DetectFaces(ctx, r.frame.Gray, FaceCascadeParams(r.t))
		if err != nil {
			return fmt.Errorf("centering face detection: %w", err)
		}
	}
	r.report.CenteringFaces = boxes

	tolerance := CenterTolerance(r.frame.Height(), r.t.FaceCenterThreshold)
	r.report.Measurements.CenterTolerance = tolerance
	if len(boxes) == 0 {
		// The neural detector saw a face the cascade cannot confirm.
		r.report.Result.FaceIsCentralized = false
		r.log.Debug("Cascade found no face for centering")
		return nil
	}

	face := boxes[0]
	distance := CenterDistance(r.frame.Width(), r.frame.Height(), face)
	ok := distance <= tolerance
	r.report.Result.FaceIsCentralized = ok
	r.report.Measurements.CenterDistance = distance
	r.report.Measurements.CenteringBox = toBox(face)

	r.emit(ctx, PrefixCenter, func() image.Image {
		return renderCenter(r.frame, face, distance, tolerance, ok)
	})
	return nil
}

// emit renders and stores one debug image. Failures are logged and never
// change a verdict.
func (r *invocation) emit(ctx context.Context, prefix string, render func() image.Image) {
	sink := r.checker.opts.Sink
	if sink == nil {
		return
	}
	namespace := ""
	if r.checker.opts.NamespaceDebug {
		namespace = r.report.InvocationID
	}
	name := ArtifactName(prefix, namespace)

	location, err := sink.Save(ctx, name, render())
	if err != nil {
		r.log.WithError(err).WithField("artifact", name).Warn("Failed to save debug image")
		return
	}
	r.report.DebugArtifacts = append(r.report.DebugArtifacts, location)
}
