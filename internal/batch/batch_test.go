package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anime-shed/face-inspector-go/pkg/models"
)

func TestWorkerPool_WaitCoversAllJobs(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	var counter int32
	for i := 0; i < 50; i++ {
		pool.Submit(func() {
			atomic.AddInt32(&counter, 1)
		})
	}
	pool.Wait()

	if got := atomic.LoadInt32(&counter); got != 50 {
		t.Errorf("Wait returned after %d of 50 jobs", got)
	}
}

func TestWorkerPool_DefaultsToCPUCount(t *testing.T) {
	if NewWorkerPool(0).Workers() < 1 {
		t.Error("expected at least one worker")
	}
}

func TestWorkerPool_CloseTwice(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()
}

func TestWorkerPool_Bounded(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	pool.Wait()
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", peak)
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunner_RunDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "good.jpg", "smile.png", "empty.jpeg", "broken.jpg", "readme.md")

	good := models.QualityResult{
		FaceDetected: true, EyesIsGood: true, ContrastIsGood: true,
		BrightnessIsGood: true, FaceIsCentralized: true,
	}
	smiling := good
	smiling.IsSmiling = true

	var progress int32
	r := &Runner{
		Workers: 2,
		Check: func(_ context.Context, path string) (models.QualityResult, error) {
			switch {
			case strings.HasSuffix(path, "good.jpg"):
				return good, nil
			case strings.HasSuffix(path, "smile.png"):
				return smiling, nil
			case strings.HasSuffix(path, "broken.jpg"):
				return models.QualityResult{}, errors.New("decode failed")
			}
			return models.Rejected(), nil
		},
		Progress: func(Result) { atomic.AddInt32(&progress, 1) },
	}

	results, summary, err := r.RunDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("RunDir: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4 image files", len(results))
	}
	// sorted by name
	wantOrder := []string{"broken.jpg", "empty.jpeg", "good.jpg", "smile.png"}
	for i, name := range wantOrder {
		if results[i].Name != name {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Name, name)
		}
	}
	if results[0].Error != "decode failed" {
		t.Errorf("error text = %q", results[0].Error)
	}

	want := Summary{Total: 4, Acceptable: 1, Rejected: 2, NoFace: 1, Failed: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if progress != 4 {
		t.Errorf("progress called %d times, want 4", progress)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	r := &Runner{Workers: 1, Check: func(context.Context, string) (models.QualityResult, error) {
		atomic.AddInt32(&calls, 1)
		return models.QualityResult{}, nil
	}}
	results := r.Run(ctx, []string{"a.jpg", "b.jpg"})
	if calls != 0 {
		t.Errorf("Check called %d times after cancellation", calls)
	}
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", res.Name, res.Err)
		}
	}
}

func TestRunDir_MissingFolder(t *testing.T) {
	r := &Runner{Check: func(context.Context, string) (models.QualityResult, error) {
		return models.QualityResult{}, nil
	}}
	if _, _, err := r.RunDir(context.Background(), filepath.Join(t.TempDir(), "nope")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
