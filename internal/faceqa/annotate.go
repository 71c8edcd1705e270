package faceqa

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colorFace  = color.RGBA{0, 255, 0, 255}
	colorEye   = color.RGBA{255, 255, 0, 255}
	colorMouth = color.RGBA{255, 0, 255, 255}
	colorFail  = color.RGBA{255, 0, 0, 255}
	colorLabel = color.RGBA{255, 255, 255, 255}
)

// canvas copies the frame into a drawable RGBA image.
func canvas(frame *Frame) *image.RGBA {
	b := frame.Color.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, frame.Color, b.Min, draw.Src)
	return rgba
}

// drawRect draws a rectangle outline with the given thickness
func drawRect(img *image.RGBA, r image.Rectangle, col color.RGBA, thickness int) {
	b := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			setIn(img, b, x, r.Min.Y+t, col)
			setIn(img, b, x, r.Max.Y-t, col)
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			setIn(img, b, r.Min.X+t, y, col)
			setIn(img, b, r.Max.X-t, y, col)
		}
	}
}

// drawDot draws a filled circle.
func drawDot(img *image.RGBA, p Point, radius int, col color.RGBA) {
	b := img.Bounds()
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setIn(img, b, cx+dx, cy+dy, col)
			}
		}
	}
}

// drawLine uses a simple DDA; good enough for debug overlays.
func drawLine(img *image.RGBA, a, b image.Point, col color.RGBA) {
	bounds := img.Bounds()
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		setIn(img, bounds, a.X, a.Y, col)
		return
	}
	for i := 0; i <= steps; i++ {
		x := a.X + dx*i/steps
		y := a.Y + dy*i/steps
		setIn(img, bounds, x, y, col)
	}
}

// drawLabel writes text with its baseline at (x, y) on a dark backing strip.
func drawLabel(img *image.RGBA, x, y int, text string, col color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	strip := image.Rect(x-2, y-face.Ascent-2, x+width+2, y+face.Descent+2)
	draw.Draw(img, strip.Intersect(img.Bounds()), image.NewUniform(color.RGBA{0, 0, 0, 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func setIn(img *image.RGBA, b image.Rectangle, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(b) {
		img.SetRGBA(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func verdictColor(ok bool) color.RGBA {
	if ok {
		return colorFace
	}
	return colorFail
}
