// Package onnx runs the neural face detector (YuNet) and the face mesh
// landmark model through ONNX Runtime.
package onnx

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	xdraw "golang.org/x/image/draw"

	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/vision"
)

var (
	envOnce sync.Once
	envErr  error
)

// DefaultLibrary is the ONNX Runtime shared library name for this platform.
func DefaultLibrary() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// Init loads the ONNX Runtime shared library. Only the first call has any
// effect; later calls return its result.
func Init(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath == "" {
			libraryPath = DefaultLibrary()
		}
		ort.SetSharedLibraryPath(libraryPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("%w: initializing onnxruntime from %s: %v", vision.ErrBackendUnavailable, libraryPath, err)
			return
		}
		logger.WithField("library", libraryPath).Info("ONNX Runtime initialized")
	})
	return envErr
}

// Shutdown releases the runtime. Sessions must be closed first.
func Shutdown() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			logger.WithError(err).Warn("Failed to destroy ONNX Runtime environment")
		}
	}
}

// resize scales r of src to a w x h RGBA image.
func resize(src image.Image, r image.Rectangle, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if r.Empty() {
		return dst
	}
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, r, xdraw.Src, nil)
	return dst
}
