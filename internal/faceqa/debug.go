package faceqa

import (
	"fmt"
	"image"
)

// Debug artifact prefixes, one per analyzer.
const (
	PrefixEyes       = "eyes_"
	PrefixSmile      = "smile_"
	PrefixContrast   = "contrast_"
	PrefixBrightness = "brightness_"
	PrefixCenter     = "center_"
)

// ArtifactName names the debug image of one analyzer. With an empty
// namespace every call reuses the same name and overwrites the previous one.
func ArtifactName(prefix, namespace string) string {
	if namespace == "" {
		return prefix + "image.jpg"
	}
	return prefix + namespace + ".jpg"
}

func renderEyes(frame *Frame, search image.Rectangle, eyes []image.Rectangle, perEye [][]float64, threshold float64) image.Image {
	img := canvas(frame)
	drawRect(img, search, colorLabel, 1)
	for i, r := range eyes {
		var areas []float64
		if i < len(perEye) {
			areas = perEye[i]
		}
		col := colorEye
		if !EyeIsOpen(areas, threshold) {
			col = colorFail
		}
		drawRect(img, r, col, 2)
		drawLabel(img, r.Min.X, r.Min.Y-3, fmt.Sprintf("eye %.0f", maxOf(areas)), col)
	}
	return img
}

func renderSmile(frame *Frame, face image.Rectangle, s SmileMeasurement, lm *MouthLandmarks, smiles []image.Rectangle) image.Image {
	img := canvas(frame)
	drawRect(img, face, colorFace, 2)
	if lm != nil {
		for _, p := range []Point{lm.Left, lm.Right, lm.Upper, lm.Lower} {
			drawDot(img, p, 3, colorMouth)
		}
	}
	for _, r := range smiles {
		drawRect(img, r, colorMouth, 2)
	}
	label := fmt.Sprintf("%s ratio %.2f smiling=%t", s.Strategy, s.Ratio, s.Smiling)
	drawLabel(img, face.Min.X, face.Max.Y+14, label, verdictColor(!s.Smiling))
	return img
}

func renderIntensity(frame *Frame, name string, value, threshold float64, ok bool) image.Image {
	img := canvas(frame)
	drawLabel(img, 8, 20, fmt.Sprintf("%s %.1f (min %.1f)", name, value, threshold), verdictColor(ok))
	return img
}

func renderCenter(frame *Frame, face image.Rectangle, distance, tolerance float64, ok bool) image.Image {
	img := canvas(frame)
	col := verdictColor(ok)
	drawRect(img, face, col, 2)

	fc := image.Pt(face.Min.X+face.Dx()/2, face.Min.Y+face.Dy()/2)
	ic := image.Pt(frame.Width()/2, frame.Height()/2)
	drawLine(img, fc, ic, col)
	drawDot(img, Point{X: float64(ic.X), Y: float64(ic.Y)}, 4, colorLabel)
	drawLabel(img, 8, 20, fmt.Sprintf("distance %.1f (max %.1f)", distance, tolerance), col)
	return img
}

func maxOf(values []float64) float64 {
	var m float64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
