// Package vision holds the pieces shared by the detector backends: luma
// conversion, box overlap and the two ways of merging raw detections.
package vision

import (
	"errors"
	"image"
	"image/draw"
	"sort"
)

// ErrBackendUnavailable is returned by backends that were not compiled in or
// whose native runtime could not be loaded.
var ErrBackendUnavailable = errors.New("vision backend unavailable")

// Scored is a detection box with its confidence.
type Scored struct {
	Box   image.Rectangle
	Score float32
}

// IoU is the intersection over union of two boxes.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// NMS keeps the highest scoring box of every overlapping set. The result is
// ordered by descending score.
func NMS(dets []Scored, threshold float64) []Scored {
	if len(dets) == 0 {
		return nil
	}
	sorted := append([]Scored(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	suppressed := make([]bool, len(sorted))
	var keep []Scored
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i].Box, sorted[j].Box) > threshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}

// GroupByOverlap merges raw sliding-window hits the way detectMultiScale
// does. Boxes overlapping by more than threshold IoU join one group. A group
// survives when it has more than minNeighbors members and their summed score
// reaches minScore; it is then replaced by its average box carrying the summed
// score. Groups keep the order of their first member.
func GroupByOverlap(dets []Scored, threshold float64, minNeighbors int, minScore float32) []Scored {
	n := len(dets)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if IoU(dets[i].Box, dets[j].Box) > threshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					// keep the lowest index as root so order follows first appearance
					if rj < ri {
						ri, rj = rj, ri
					}
					parent[rj] = ri
				}
			}
		}
	}

	type sum struct {
		x0, y0, x1, y1, count int
		score                 float32
	}
	sums := make(map[int]*sum)
	var roots []int
	for i, d := range dets {
		root := find(i)
		s, ok := sums[root]
		if !ok {
			s = &sum{}
			sums[root] = s
			roots = append(roots, root)
		}
		s.x0 += d.Box.Min.X
		s.y0 += d.Box.Min.Y
		s.x1 += d.Box.Max.X
		s.y1 += d.Box.Max.Y
		s.score += d.Score
		s.count++
	}
	sort.Ints(roots)

	var out []Scored
	for _, root := range roots {
		s := sums[root]
		if s.count <= minNeighbors || s.score < minScore {
			continue
		}
		c := s.count
		out = append(out, Scored{
			Box: image.Rect(
				(s.x0+c/2)/c, (s.y0+c/2)/c,
				(s.x1+c/2)/c, (s.y1+c/2)/c,
			),
			Score: s.score,
		})
	}
	return out
}

// Luma converts img to an origin-anchored grayscale image.
func Luma(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	rect := image.Rect(0, 0, b.Dx(), b.Dy())
	gray := image.NewGray(rect)
	draw.Draw(gray, rect, img, b.Min, draw.Src)
	return gray
}

// Pixels returns the luma plane as a tightly packed row-major slice.
func Pixels(gray *image.Gray) []uint8 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if gray.Stride == w && b.Min == (image.Point{}) && len(gray.Pix) == w*h {
		return gray.Pix
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		start := gray.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w:(y+1)*w], gray.Pix[start:start+w])
	}
	return out
}

// Offset moves every box by p.
func Offset(boxes []image.Rectangle, p image.Point) []image.Rectangle {
	if p == (image.Point{}) {
		return boxes
	}
	out := make([]image.Rectangle, len(boxes))
	for i, b := range boxes {
		out[i] = b.Add(p)
	}
	return out
}
