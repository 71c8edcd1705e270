package faceqa

import (
	"context"
	"image"

	"github.com/anime-shed/face-inspector-go/internal/thresholds"
)

// Locator finds faces with one strategy
type Locator interface {
	Locate(ctx context.Context, frame *Frame, t thresholds.Thresholds) (DetectionOutcome, error)
}

// FaceCascade is a classical sliding-window face detector working on luma.
// Boxes are returned in detector order.
type FaceCascade interface {
	DetectFaces(ctx context.Context, gray *image.Gray, params CascadeParams) ([]image.Rectangle, error)
}

// FaceNetwork is a neural face detector working on the color image.
type FaceNetwork interface {
	DetectFaces(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// EyeDetector finds eye regions inside upper, the origin-anchored band of the
// image where eyes are searched. face is the located face in image
// coordinates and may extend below upper; detectors that scan the whole band
// are free to ignore it.
type EyeDetector interface {
	DetectEyes(ctx context.Context, upper *image.Gray, face image.Rectangle) ([]image.Rectangle, error)
}

// Landmarker locates mouth keypoints for the face inside box.
// found is false when the model produced no landmarks.
type Landmarker interface {
	MouthLandmarks(ctx context.Context, img image.Image, box image.Rectangle) (m MouthLandmarks, found bool, err error)
}

// SmileCascade detects smile-shaped regions inside a face crop.
type SmileCascade interface {
	DetectSmiles(ctx context.Context, face *image.Gray, minNeighbors int) ([]image.Rectangle, error)
}

// DebugSink stores annotated images. It returns a location the caller can
// report back (file path, blob URL).
type DebugSink interface {
	Save(ctx context.Context, name string, img image.Image) (string, error)
}
