package faceqa

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// levels holds every 8-bit grey value, the x axis of the intensity histogram.
var levels = func() []float64 {
	v := make([]float64, 256)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}()

// IntensityStats returns the mean and population standard deviation of every
// pixel in gray. Both checks that use it look at the whole image, not the face.
// Pixels are counted into a 256-bin histogram, so memory does not grow with
// the image.
func IntensityStats(gray *image.Gray) (mean, stdDev float64) {
	b := gray.Bounds()
	if b.Empty() {
		return 0, 0
	}

	var counts [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):gray.PixOffset(b.Max.X, y)]
		for _, v := range row {
			counts[v]++
		}
	}

	weights := make([]float64, len(counts))
	for i, n := range counts {
		weights[i] = float64(n)
	}
	return stat.PopMeanStdDev(levels, weights)
}

// BrightnessIsGood reports mean >= threshold.
func BrightnessIsGood(mean, threshold float64) bool {
	return mean >= threshold
}

// ContrastIsGood reports stdDev >= threshold.
func ContrastIsGood(stdDev, threshold float64) bool {
	return stdDev >= threshold
}
