package faceqa

import (
	"context"
	"fmt"
	"image"

	"github.com/anime-shed/face-inspector-go/internal/thresholds"
)

// Classify maps a detection count onto the outcome flags. It is shared by
// every strategy: 0 -> (false, false), 1 -> (true, false), N -> (true, true).
func Classify(boxes []image.Rectangle) DetectionOutcome {
	return DetectionOutcome{
		FaceDetected:    len(boxes) > 0,
		MoreThanOneFace: len(boxes) > 1,
		Boxes:           boxes,
	}
}

// CascadeLocator is strategy 1.
type CascadeLocator struct {
	Cascade FaceCascade
}

func NewCascadeLocator(c FaceCascade) *CascadeLocator {
	return &CascadeLocator{Cascade: c}
}

func (l *CascadeLocator) Locate(ctx context.Context, frame *Frame, t thresholds.Thresholds) (DetectionOutcome, error) {
	boxes, err := l.Cascade.DetectFaces(ctx, frame.Gray, FaceCascadeParams(t))
	if err != nil {
		return DetectionOutcome{}, fmt.Errorf("cascade face detection: %w", err)
	}
	return Classify(boxes), nil
}

// NeuralLocator is strategy 2. Thresholds do not apply to the network.
type NeuralLocator struct {
	Network FaceNetwork
}

func NewNeuralLocator(n FaceNetwork) *NeuralLocator {
	return &NeuralLocator{Network: n}
}

func (l *NeuralLocator) Locate(ctx context.Context, frame *Frame, _ thresholds.Thresholds) (DetectionOutcome, error) {
	boxes, err := l.Network.DetectFaces(ctx, frame.Color)
	if err != nil {
		return DetectionOutcome{}, fmt.Errorf("neural face detection: %w", err)
	}
	return Classify(boxes), nil
}
