package factory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anime-shed/face-inspector-go/internal/config"
	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/storage"
	"github.com/anime-shed/face-inspector-go/internal/vision/cv"
	"github.com/anime-shed/face-inspector-go/internal/vision/onnx"
	"github.com/anime-shed/face-inspector-go/internal/vision/pigo"
)

// Model subdirectories of FACEQA_MODELS_DIR.
const (
	PigoDir   = "pigo"
	OpenCVDir = "opencv"
)

// Detectors are the components of a Checker plus whatever native state must
// be released when the process stops.
type Detectors struct {
	faceqa.Components
	Backend string
	closers []func() error
}

// Close releases native sessions in reverse order of creation.
func (d *Detectors) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func (d *Detectors) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

// DetectorFactory builds the detector set for one backend
type DetectorFactory interface {
	CreateDetectors(backend string) (*Detectors, error)
}

// StorageFactory creates the image sources and debug sink
type StorageFactory interface {
	CreateFetcher() storage.ImageFetcher
	// CreateBlobStorage returns nil, nil when Azure is not configured.
	CreateBlobStorage() (storage.BlobStorage, error)
	// CreateDebugSink returns nil, nil when debug output is disabled.
	CreateDebugSink(blobs storage.BlobStorage) (faceqa.DebugSink, error)
}

type detectorFactory struct {
	cfg *config.Config
}

// NewDetectorFactory creates a factory reading model locations from cfg
func NewDetectorFactory(cfg *config.Config) DetectorFactory {
	return &detectorFactory{cfg: cfg}
}

// CreateDetectors loads the requested backend. The neural detector and the
// face mesh are optional extras picked up when their model files exist.
func (f *detectorFactory) CreateDetectors(backend string) (*Detectors, error) {
	switch backend {
	case config.BackendPigo:
		return f.pigoDetectors()
	case config.BackendGoCV:
		return f.gocvDetectors()
	default:
		return nil, fmt.Errorf("unsupported detector backend: %s", backend)
	}
}

func (f *detectorFactory) pigoDetectors() (*Detectors, error) {
	models, err := pigo.Load(f.cfg.ModelPath(PigoDir))
	if err != nil {
		return nil, fmt.Errorf("loading pigo cascades: %w", err)
	}

	d := &Detectors{Backend: config.BackendPigo}
	d.Cascade = models.FaceCascade()
	d.Eyes = models.EyeDetector()

	if err := f.attachONNX(d, true); err != nil {
		d.Close()
		return nil, err
	}
	if d.Landmarks == nil {
		// A nil *pigo.Landmarker must not end up in the interface.
		if lm := models.Landmarker(); lm != nil {
			d.Landmarks = lm
		}
	}
	return d, nil
}

func (f *detectorFactory) gocvDetectors() (*Detectors, error) {
	models, err := cv.Load(f.cfg.ModelPath(OpenCVDir))
	if err != nil {
		return nil, fmt.Errorf("loading OpenCV models: %w", err)
	}

	d := &Detectors{Backend: config.BackendGoCV}
	d.onClose(models.Close)
	d.Cascade = models.FaceCascade()
	d.Eyes = models.EyeDetector()
	d.Smiles = models.SmileCascade()
	d.Network = models.FaceNetwork()

	if err := f.attachONNX(d, d.Network == nil); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// attachONNX adds the ONNX YuNet detector (when wantNetwork) and the face
// mesh landmarker if their models are on disk. A runtime that cannot be
// loaded only disables them.
func (f *detectorFactory) attachONNX(d *Detectors, wantNetwork bool) error {
	yunetPath := f.cfg.ModelPath(f.cfg.YuNetModel)
	meshPath := f.cfg.ModelPath(f.cfg.FaceMeshModel)
	haveYuNet := wantNetwork && fileExists(yunetPath)
	haveMesh := fileExists(meshPath)
	if !haveYuNet && !haveMesh {
		logger.WithField("models_dir", f.cfg.ModelsDir).Info("No ONNX models found, neural strategy and face mesh disabled")
		return nil
	}

	if err := onnx.Init(f.cfg.ONNXRuntimeLib); err != nil {
		logger.WithError(err).Warn("ONNX Runtime unavailable, neural strategy and face mesh disabled")
		return nil
	}
	d.onClose(func() error {
		onnx.Shutdown()
		return nil
	})

	if haveYuNet {
		net, err := onnx.NewYuNet(yunetPath)
		if err != nil {
			return fmt.Errorf("loading YuNet: %w", err)
		}
		d.onClose(net.Close)
		d.Network = net
	}
	if haveMesh {
		mesh, err := onnx.NewFaceMesh(meshPath, onnx.MeshConfig{
			InputName:  f.cfg.FaceMeshInput,
			OutputName: f.cfg.FaceMeshOutput,
		})
		if err != nil {
			return fmt.Errorf("loading face mesh: %w", err)
		}
		d.onClose(mesh.Close)
		d.Landmarks = mesh
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

func (f *storageFactory) CreateFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout)
}

func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if !f.cfg.AzureEnabled() {
		return nil, nil
	}
	return storage.NewAzureStorage(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureURL)
}

// CreateDebugSink prefers the blob container over the local directory when
// both are configured.
func (f *storageFactory) CreateDebugSink(blobs storage.BlobStorage) (faceqa.DebugSink, error) {
	switch {
	case f.cfg.DebugContainer != "":
		if blobs == nil {
			return nil, errors.New("debug container configured without blob storage")
		}
		return storage.NewBlobSink(blobs, f.cfg.DebugContainer, "debug/"), nil
	case f.cfg.DebugDir != "":
		return storage.NewDirSink(filepath.Clean(f.cfg.DebugDir))
	}
	return nil, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	DetectorFactory DetectorFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		DetectorFactory: NewDetectorFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
