package faceqa

import (
	"image"
	"math"
)

// pupilCutoff is the binary-inverse threshold: pixels darker than this are
// treated as pupil/iris foreground.
const pupilCutoff = 70

// neighbour offsets, counter-clockwise on screen starting east.
var ring = [8]image.Point{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

// mask is a padded binary grid: one background cell on every side, so
// tracing never leaves the slice.
type mask struct {
	w, h  int
	cells []bool
}

// darkMask marks pixels of gray below cutoff.
func darkMask(gray *image.Gray, cutoff uint8) *mask {
	b := gray.Bounds()
	m := &mask{w: b.Dx() + 2, h: b.Dy() + 2}
	m.cells = make([]bool, m.w*m.h)
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x] < cutoff {
				m.cells[(y+1)*m.w+x+1] = true
			}
		}
	}
	return m
}

func (m *mask) at(p image.Point) bool {
	return m.cells[p.Y*m.w+p.X]
}

// ExternalContourAreas thresholds gray at the pupil cutoff and returns the
// polygon area of every outermost contour, in raster order of the contour
// start points.
func ExternalContourAreas(gray *image.Gray) []float64 {
	return externalContourAreas(darkMask(gray, pupilCutoff))
}

func externalContourAreas(m *mask) []float64 {
	outside := m.outside()
	seen := make([]bool, len(m.cells))

	var areas []float64
	for y := 1; y < m.h-1; y++ {
		for x := 1; x < m.w-1; x++ {
			i := y*m.w + x
			if !m.cells[i] || seen[i] {
				continue
			}
			// First raster hit of a component is its top-left pixel and
			// always has background to the west.
			external := m.component(image.Pt(x, y), seen, outside)
			if !external {
				continue
			}
			areas = append(areas, shoelace(m.trace(image.Pt(x, y))))
		}
	}
	return areas
}

// outside flood-fills background 4-connected to the padding. Background cells
// not reached are holes.
func (m *mask) outside() []bool {
	out := make([]bool, len(m.cells))
	stack := []int{0}
	out[0] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%m.w, i/m.w
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
				continue
			}
			j := ny*m.w + nx
			if out[j] || m.cells[j] {
				continue
			}
			out[j] = true
			stack = append(stack, j)
		}
	}
	return out
}

// component marks the 8-connected component containing start as seen and
// reports whether any of its pixels borders the outside region.
func (m *mask) component(start image.Point, seen, outside []bool) bool {
	external := false
	stack := []image.Point{start}
	seen[start.Y*m.w+start.X] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for k, d := range ring {
			q := p.Add(d)
			j := q.Y*m.w + q.X
			if k%2 == 0 && outside[j] {
				external = true
			}
			if m.cells[j] && !seen[j] {
				seen[j] = true
				stack = append(stack, q)
			}
		}
	}
	return external
}

// trace follows the outer border of the component starting at its top-left
// pixel and returns the border pixel centres in order.
func (m *mask) trace(start image.Point) []image.Point {
	// Search clockwise from west for the first foreground neighbour.
	var first image.Point
	found := false
	for k := 0; k < 8; k++ {
		d := (4 - k + 8) % 8
		q := start.Add(ring[d])
		if m.at(q) {
			first, found = q, true
			break
		}
	}
	if !found {
		return []image.Point{start}
	}

	contour := []image.Point{}
	prev, cur := first, start
	for {
		contour = append(contour, cur)
		back := direction(cur, prev)
		var next image.Point
		for k := 1; k <= 8; k++ {
			q := cur.Add(ring[(back+k)%8])
			if m.at(q) {
				next = q
				break
			}
		}
		if next == start && cur == first {
			break
		}
		prev, cur = cur, next
	}
	return contour
}

func direction(from, to image.Point) int {
	d := to.Sub(from)
	for k, r := range ring {
		if r == d {
			return k
		}
	}
	return 0
}

// shoelace returns the absolute polygon area of pts.
func shoelace(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}
