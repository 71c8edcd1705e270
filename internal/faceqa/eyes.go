package faceqa

import (
	"image"
	"sort"
)

// maxEyes is how many detected eye regions are kept, largest first.
const maxEyes = 2

// EyeSearchArea is the upper band of an image where eyes are looked for:
// rows [0, (height + extra) / 2), clamped to the image.
func EyeSearchArea(width, height, extra int) image.Rectangle {
	h := (height + extra) / 2
	if h > height {
		h = height
	}
	if h < 0 {
		h = 0
	}
	return image.Rect(0, 0, width, h)
}

// LargestEyes sorts regions by area, descending, and keeps at most two.
// The input slice is not modified.
func LargestEyes(regions []image.Rectangle) []image.Rectangle {
	kept := append([]image.Rectangle(nil), regions...)
	sort.SliceStable(kept, func(i, j int) bool {
		return area(kept[i]) > area(kept[j])
	})
	if len(kept) > maxEyes {
		kept = kept[:maxEyes]
	}
	return kept
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// EyeIsOpen reports whether any contour of one eye region exceeds threshold.
func EyeIsOpen(contourAreas []float64, threshold float64) bool {
	for _, a := range contourAreas {
		if a > threshold {
			return true
		}
	}
	return false
}

// EyesAreGood is true when at least one eye region is open. One open eye is
// enough.
func EyesAreGood(perEye [][]float64, threshold float64) bool {
	for _, areas := range perEye {
		if EyeIsOpen(areas, threshold) {
			return true
		}
	}
	return false
}

// eyeContourAreas crops each region out of gray and measures its dark contours.
func eyeContourAreas(gray *image.Gray, regions []image.Rectangle) [][]float64 {
	perEye := make([][]float64, 0, len(regions))
	for _, r := range regions {
		r = r.Intersect(gray.Bounds())
		if r.Empty() {
			perEye = append(perEye, nil)
			continue
		}
		perEye = append(perEye, ExternalContourAreas(gray.SubImage(r).(*image.Gray)))
	}
	return perEye
}
