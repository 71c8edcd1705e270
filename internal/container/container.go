package container

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/face-inspector-go/internal/config"
	"github.com/anime-shed/face-inspector-go/internal/factory"
	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/observer"
	"github.com/anime-shed/face-inspector-go/internal/repository"
	"github.com/anime-shed/face-inspector-go/internal/service"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/internal/transport"
	"github.com/anime-shed/face-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config           *config.Config
	detectors        *factory.Detectors
	store            *thresholds.Store
	checker          *faceqa.Checker
	metrics          *observer.MetricsObserver
	faceCheckService service.FaceCheckService
	handler          http.Handler
}

// NewContainer creates a new dependency injection container from the
// environment.
func NewContainer() (*Container, error) {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg, factory.NewComponentFactory(cfg))
}

// NewContainerWithConfig builds the dependency graph from cfg.
func NewContainerWithConfig(cfg *config.Config, components *factory.ComponentFactory) (*Container, error) {
	store, err := OpenThresholds(cfg)
	if err != nil {
		return nil, err
	}

	// Build dependency graph
	storages := components.StorageFactory
	blobs, err := storages.CreateBlobStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to create blob storage: %w", err)
	}
	sink, err := storages.CreateDebugSink(blobs)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug sink: %w", err)
	}

	detectors, err := components.DetectorFactory.CreateDetectors(cfg.Backend)
	if err != nil {
		return nil, err
	}
	checker, err := faceqa.NewChecker(detectors.Components, faceqa.Options{
		Sink:           sink,
		NamespaceDebug: cfg.DebugNamespace,
	})
	if err != nil {
		detectors.Close()
		return nil, err
	}

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	imageRepository := repository.NewImageRepository(storages.CreateFetcher(), blobs, validation.NewSourceValidator())
	faceCheckService := service.NewFaceCheckService(imageRepository, checker, store, publisher)
	handler := transport.NewHandler(faceCheckService, metrics, cfg)

	logger.WithFields(logrus.Fields{
		"backend":    detectors.Backend,
		"neural":     checker.Supports(faceqa.VersionNeural),
		"landmarks":  detectors.Landmarks != nil,
		"debug":      sink != nil,
		"blob":       blobs != nil,
		"thresholds": store.Path(),
	}).Info("Face checker ready")

	return &Container{
		config:           cfg,
		detectors:        detectors,
		store:            store,
		checker:          checker,
		metrics:          metrics,
		faceCheckService: faceCheckService,
		handler:          handler,
	}, nil
}

// OpenThresholds loads the threshold file strictly. With
// FACEQA_THRESHOLDS_FALLBACK a missing file falls back to the built-in
// defaults, kept in memory and written back on the first update.
func OpenThresholds(cfg *config.Config) (*thresholds.Store, error) {
	store, err := thresholds.Open(cfg.ThresholdsFile)
	if err == nil {
		return store, nil
	}
	if cfg.ThresholdsFallback && errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).WithField("path", cfg.ThresholdsFile).
			Warn("Threshold file not found, using built-in defaults")
		return thresholds.NewStore(cfg.ThresholdsFile, thresholds.Defaults()), nil
	}
	return nil, fmt.Errorf("failed to load thresholds: %w", err)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the face check service
func (c *Container) Service() service.FaceCheckService {
	return c.faceCheckService
}

func (c *Container) Checker() *faceqa.Checker {
	return c.checker
}

func (c *Container) Thresholds() *thresholds.Store {
	return c.store
}

func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases detector sessions.
func (c *Container) Close() error {
	return c.detectors.Close()
}
