package service

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/face-inspector-go/internal/errors"
	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/observer"
	"github.com/anime-shed/face-inspector-go/internal/repository"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
	"github.com/anime-shed/face-inspector-go/pkg/validation"
)

// Source names where an image came from. It is reported in events and in
// detailed reports.
type Source string

const (
	SourceBase64 Source = "base64"
	SourceURL    Source = "url"
	SourceBlob   Source = "blob"
	SourceFile   Source = "file"
)

// ImageRef points at exactly one image. The first non-empty of Base64, URL,
// Blob and Path wins.
type ImageRef struct {
	Base64    string
	URL       string
	Container string
	Blob      string
	Path      string
}

// Source reports which field of the reference is used.
func (r ImageRef) Source() (Source, bool) {
	switch {
	case strings.TrimSpace(r.Base64) != "":
		return SourceBase64, true
	case strings.TrimSpace(r.URL) != "":
		return SourceURL, true
	case r.Blob != "":
		return SourceBlob, true
	case r.Path != "":
		return SourceFile, true
	}
	return "", false
}

// FaceChecker is the part of faceqa.Checker the service drives.
type FaceChecker interface {
	Inspect(ctx context.Context, img image.Image, v faceqa.Version, t thresholds.Thresholds) (faceqa.Report, error)
}

// FaceCheckService resolves images and runs face checks against the current
// thresholds.
type FaceCheckService interface {
	// Check returns the seven verdicts for ref.
	Check(ctx context.Context, ref ImageRef, version int) (models.QualityResult, error)
	// CheckDetailed adds measurements, per-check explanations and issues.
	CheckDetailed(ctx context.Context, ref ImageRef, version int) (*models.DetailedReport, error)

	CheckBase64(ctx context.Context, payload string, version int) (models.QualityResult, error)
	CheckURL(ctx context.Context, imageURL string, version int) (models.QualityResult, error)
	CheckBlob(ctx context.Context, container, blob string, version int) (models.QualityResult, error)
	CheckFile(ctx context.Context, path string, version int) (models.QualityResult, error)

	Thresholds() thresholds.Thresholds
	UpdateThresholds(ctx context.Context, patch map[string]float64) (thresholds.Thresholds, error)
}

type faceCheckService struct {
	images    repository.ImageRepository
	checker   FaceChecker
	store     *thresholds.Store
	publisher observer.Subject
}

// NewFaceCheckService wires the service. publisher may be nil.
func NewFaceCheckService(
	images repository.ImageRepository,
	checker FaceChecker,
	store *thresholds.Store,
	publisher observer.Subject,
) FaceCheckService {
	return &faceCheckService{
		images:    images,
		checker:   checker,
		store:     store,
		publisher: publisher,
	}
}

func (s *faceCheckService) CheckBase64(ctx context.Context, payload string, version int) (models.QualityResult, error) {
	if strings.TrimSpace(payload) == "" {
		return models.QualityResult{}, apperrors.NewValidationError("No image provided", nil)
	}
	return s.Check(ctx, ImageRef{Base64: payload}, version)
}

func (s *faceCheckService) CheckURL(ctx context.Context, imageURL string, version int) (models.QualityResult, error) {
	if strings.TrimSpace(imageURL) == "" {
		return models.QualityResult{}, apperrors.NewValidationError("No URL provided", nil)
	}
	return s.Check(ctx, ImageRef{URL: imageURL}, version)
}

func (s *faceCheckService) CheckBlob(ctx context.Context, container, blob string, version int) (models.QualityResult, error) {
	if blob == "" {
		return models.QualityResult{}, apperrors.NewValidationError("No blob provided", nil)
	}
	return s.Check(ctx, ImageRef{Container: container, Blob: blob}, version)
}

func (s *faceCheckService) CheckFile(ctx context.Context, path string, version int) (models.QualityResult, error) {
	if path == "" {
		return models.QualityResult{}, apperrors.NewValidationError("No file provided", nil)
	}
	return s.Check(ctx, ImageRef{Path: path}, version)
}

func (s *faceCheckService) Check(ctx context.Context, ref ImageRef, version int) (models.QualityResult, error) {
	run, err := s.run(ctx, ref, version)
	if err != nil {
		return models.QualityResult{}, err
	}
	return run.report.Result, nil
}

func (s *faceCheckService) CheckDetailed(ctx context.Context, ref ImageRef, version int) (*models.DetailedReport, error) {
	run, err := s.run(ctx, ref, version)
	if err != nil {
		return nil, err
	}

	report := run.report
	qv := validation.NewQualityValidator(run.thresholds)
	issues := qv.ValidatePortrait(report.Result, report.Measurements)
	if report.Result.Acceptable() {
		issues = nil
	}

	return &models.DetailedReport{
		InvocationID:      report.InvocationID,
		Source:            string(run.source),
		Version:           int(report.Version),
		Timestamp:         run.started.UTC().Format(time.RFC3339),
		ProcessingTimeSec: run.elapsed.Seconds(),
		Result:            report.Result,
		Acceptable:        report.Result.Acceptable(),
		Measurements:      report.Measurements,
		Checks:            qv.Checks(report.Result, report.Measurements),
		Issues:            qv.ConvertIssuesToMessages(issues),
		DebugArtifacts:    report.DebugArtifacts,
	}, nil
}

func (s *faceCheckService) Thresholds() thresholds.Thresholds {
	return s.store.Get()
}

func (s *faceCheckService) UpdateThresholds(ctx context.Context, patch map[string]float64) (thresholds.Thresholds, error) {
	if err := validation.ValidateThresholdsPatch(patch); err != nil {
		return s.store.Get(), err
	}
	next, err := s.store.Update(patch)
	if err != nil {
		if errors.Is(err, thresholds.ErrInvalidThresholds) {
			return next, apperrors.NewValidationError("Invalid thresholds", err)
		}
		return next, apperrors.NewInternalError("Failed to persist thresholds", err)
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	s.publish(ctx, observer.CheckEvent{
		EventType: observer.ThresholdsUpdated,
		Metadata:  map[string]interface{}{"keys": keys},
	})
	return next, nil
}

// checkRun is one resolved and inspected image.
type checkRun struct {
	source     Source
	thresholds thresholds.Thresholds
	report     faceqa.Report
	started    time.Time
	elapsed    time.Duration
}

func (s *faceCheckService) run(ctx context.Context, ref ImageRef, version int) (*checkRun, error) {
	source, ok := ref.Source()
	if !ok {
		return nil, apperrors.NewValidationError("No image provided", nil)
	}
	v, err := faceqa.ParseVersion(version)
	if err != nil {
		return nil, apperrors.NewValidationError("Unsupported version", err)
	}

	run := &checkRun{source: source, thresholds: s.store.Get(), started: time.Now()}
	s.publish(ctx, observer.CheckEvent{EventType: observer.CheckStarted, Source: string(source), Version: int(v)})

	img, err := s.resolve(ctx, source, ref)
	if err != nil {
		s.publish(ctx, observer.CheckEvent{
			EventType:    observer.ImageFetchFailed,
			Source:       string(source),
			Version:      int(v),
			ErrorMessage: err.Error(),
		})
		s.fail(ctx, source, v, err)
		return nil, err
	}
	b := img.Bounds()
	s.publish(ctx, observer.CheckEvent{
		EventType: observer.ImageFetched,
		Source:    string(source),
		Metadata:  map[string]interface{}{"width": b.Dx(), "height": b.Dy()},
	})

	report, err := s.checker.Inspect(ctx, img, v, run.thresholds)
	if err != nil {
		err = checkError(err)
		s.fail(ctx, source, v, err)
		return nil, err
	}
	run.report = report
	run.elapsed = time.Since(run.started)

	event := observer.CheckEvent{
		EventType:      observer.CheckCompleted,
		InvocationID:   report.InvocationID,
		Source:         string(source),
		Version:        int(v),
		ProcessingTime: run.elapsed,
		Acceptable:     report.Result.Acceptable(),
		Metadata:       map[string]interface{}{"faces": report.Measurements.FaceCount},
	}
	if !report.Result.FaceDetected {
		event.EventType = observer.CheckRejected
	}
	s.publish(ctx, event)
	return run, nil
}

func (s *faceCheckService) resolve(ctx context.Context, source Source, ref ImageRef) (image.Image, error) {
	switch source {
	case SourceBase64:
		return s.images.FromBase64(ctx, ref.Base64)
	case SourceURL:
		return s.images.FromURL(ctx, strings.TrimSpace(ref.URL))
	case SourceBlob:
		return s.images.FromBlob(ctx, ref.Container, ref.Blob)
	default:
		return s.images.FromFile(ctx, ref.Path)
	}
}

// checkError maps checker failures onto AppErrors.
func checkError(err error) error {
	switch {
	case errors.Is(err, faceqa.ErrUnknownVersion), errors.Is(err, faceqa.ErrStrategyUnavailable):
		return apperrors.NewValidationError("Unsupported version", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Face check timeout", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("Face check cancelled", err)
	}
	return apperrors.NewModelError("Face check failed", err)
}

func (s *faceCheckService) fail(ctx context.Context, source Source, v faceqa.Version, err error) {
	logger.WithFields(logrus.Fields{
		"source":  source,
		"version": int(v),
	}).WithError(err).Debug("Face check failed")
	s.publish(ctx, observer.CheckEvent{
		EventType:    observer.CheckFailed,
		Source:       string(source),
		Version:      int(v),
		ErrorMessage: err.Error(),
	})
}

func (s *faceCheckService) publish(ctx context.Context, event observer.CheckEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}
