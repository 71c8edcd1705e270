package faceqa

import (
	"image"
	"math"
)

// CenterDistance is the Euclidean distance between the centre of face and the
// centre of an image of the given size. Centres use integer halves.
func CenterDistance(width, height int, face image.Rectangle) float64 {
	fx := face.Min.X + face.Dx()/2
	fy := face.Min.Y + face.Dy()/2
	dx := float64(fx - width/2)
	dy := float64(fy - height/2)
	return math.Hypot(dx, dy)
}

// CenterTolerance is the largest allowed CenterDistance for an image of the
// given height.
func CenterTolerance(height int, fraction float64) float64 {
	return float64(height) * fraction
}

// FaceIsCentralized reports distance <= height * fraction.
func FaceIsCentralized(width, height int, face image.Rectangle, fraction float64) bool {
	return CenterDistance(width, height, face) <= CenterTolerance(height, fraction)
}
