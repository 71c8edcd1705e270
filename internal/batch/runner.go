// Package batch checks every image of a folder on a bounded worker pool.
package batch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/storage"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

// CheckFunc checks one file.
type CheckFunc func(ctx context.Context, path string) (models.QualityResult, error)

// Result is the outcome for one file. Err is set when the file could not be
// checked at all.
type Result struct {
	Path     string               `json:"path"`
	Name     string               `json:"name"`
	Result   models.QualityResult `json:"result"`
	Err      error                `json:"-"`
	Error    string               `json:"error,omitempty"`
	Duration time.Duration        `json:"duration"`
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total      int `json:"total"`
	Acceptable int `json:"acceptable"`
	Rejected   int `json:"rejected"`
	NoFace     int `json:"no_face"`
	Failed     int `json:"failed"`
}

// Runner checks folders with a fixed number of workers.
type Runner struct {
	Workers int
	Check   CheckFunc
	// Progress, when set, is called once per finished file from the
	// worker goroutine.
	Progress func(Result)
}

// RunDir checks every image directly inside dir.
func (r *Runner) RunDir(ctx context.Context, dir string) ([]Result, Summary, error) {
	files, err := storage.ListImages(dir)
	if err != nil {
		return nil, Summary{}, err
	}
	results := r.Run(ctx, files)
	return results, Summarize(results), nil
}

// Run checks files and returns results in input order. Files not started
// before ctx ends are reported with the context error.
func (r *Runner) Run(ctx context.Context, files []string) []Result {
	results := make([]Result, len(files))
	pool := NewWorkerPool(r.Workers)
	pool.Start()
	defer pool.Close()

	logger.WithFields(logrus.Fields{
		"files":   len(files),
		"workers": pool.Workers(),
	}).Info("Starting batch check")

	for i, path := range files {
		pool.Submit(func() {
			res := Result{Path: path, Name: filepath.Base(path)}
			start := time.Now()
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Result, res.Err = r.Check(ctx, path)
			}
			res.Duration = time.Since(start)
			if res.Err != nil {
				res.Error = res.Err.Error()
				logger.WithError(res.Err).WithField("file", path).Warn("Batch check failed")
			}
			results[i] = res
			if r.Progress != nil {
				r.Progress(res)
			}
		})
	}
	pool.Wait()
	return results
}

func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, res := range results {
		switch {
		case res.Err != nil:
			s.Failed++
		case !res.Result.FaceDetected:
			s.NoFace++
			s.Rejected++
		case res.Result.Acceptable():
			s.Acceptable++
		default:
			s.Rejected++
		}
	}
	return s
}
