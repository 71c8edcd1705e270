package vision

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0},
		{"half overlap", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 50.0 / 150.0},
		{"touching edges", image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	dets := []Scored{
		{Box: image.Rect(0, 0, 10, 10), Score: 0.6},
		{Box: image.Rect(1, 1, 11, 11), Score: 0.9},
		{Box: image.Rect(50, 50, 60, 60), Score: 0.7},
	}
	got := NMS(dets, 0.3)
	if len(got) != 2 {
		t.Fatalf("kept %d boxes, want 2: %v", len(got), got)
	}
	if got[0].Score != 0.9 || got[1].Score != 0.7 {
		t.Errorf("kept %v, want scores 0.9 then 0.7", got)
	}
	if dets[0].Score != 0.6 {
		t.Error("input was reordered")
	}
	if NMS(nil, 0.3) != nil {
		t.Error("empty input must give nil")
	}
}

func TestGroupByOverlap(t *testing.T) {
	cluster := func(x, y, n int, score float32) []Scored {
		var out []Scored
		for i := 0; i < n; i++ {
			out = append(out, Scored{Box: image.Rect(x+i, y, x+i+40, y+40), Score: score})
		}
		return out
	}

	var dets []Scored
	dets = append(dets, cluster(200, 10, 3, 4)...) // weak group, appears first
	dets = append(dets, cluster(0, 0, 6, 1)...)
	dets = append(dets, cluster(100, 100, 8, 2)...)

	got := GroupByOverlap(dets, 0.2, 5, 0)
	if len(got) != 2 {
		t.Fatalf("got %d groups, want 2: %v", len(got), got)
	}
	// average of x offsets 0..5 is 2.5, rounded up
	if got[0].Box != image.Rect(3, 0, 43, 40) {
		t.Errorf("first group = %v", got[0].Box)
	}
	if got[0].Score != 6 {
		t.Errorf("first group score = %v, want the sum 6", got[0].Score)
	}
	if got[1].Box.Min.Y != 100 || got[1].Score != 16 {
		t.Errorf("second group = %+v, want the cluster at y=100 scoring 16", got[1])
	}

	if got := GroupByOverlap(cluster(0, 0, 5, 1), 0.2, 5, 0); len(got) != 0 {
		t.Errorf("a group equal to minNeighbors must be dropped, got %v", got)
	}
	if got := GroupByOverlap(cluster(0, 0, 1, 1), 0.2, 0, 0); len(got) != 1 {
		t.Errorf("minNeighbors 0 keeps single hits, got %v", got)
	}
}

func TestGroupByOverlapMinScore(t *testing.T) {
	var dets []Scored
	for i := 0; i < 8; i++ {
		// enough neighbours, but every window is barely above zero
		dets = append(dets, Scored{Box: image.Rect(i, 0, i+40, 40), Score: 0.5})
	}
	for i := 0; i < 8; i++ {
		dets = append(dets, Scored{Box: image.Rect(200+i, 0, 240+i, 40), Score: 3})
	}

	got := GroupByOverlap(dets, 0.2, 5, 5)
	if len(got) != 1 {
		t.Fatalf("got %d groups, want only the confident one: %v", len(got), got)
	}
	if got[0].Box.Min.X < 200 {
		t.Errorf("kept group = %v, want the one at x=200", got[0].Box)
	}
	if got := GroupByOverlap(dets, 0.2, 5, 4); len(got) != 2 {
		t.Errorf("summed score 4 reaches minScore 4, got %d groups", len(got))
	}
}

func TestPixels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	if got := Pixels(img); &got[0] != &img.Pix[0] {
		t.Error("packed images must not be copied")
	}

	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)
	got := Pixels(sub)
	want := []uint8{5, 6, 9, 10}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pixels = %v, want %v", got, want)
			break
		}
	}
}

func TestLumaAnchorsAtOrigin(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(10, 10, 20, 30))
	g := Luma(rgba)
	if g.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Errorf("bounds = %v", g.Bounds())
	}
}
