package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/anime-shed/face-inspector-go/internal/batch"
	"github.com/anime-shed/face-inspector-go/internal/container"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch <folder>",
	Short: "Check every image in a folder",
	Long: `Check every .jpg, .jpeg and .png file directly inside a folder and
print one line per file followed by summary counts.

Example:
  faceqa batch ./photos
  faceqa batch --workers 8 --json ./photos > results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().Int("version", 1, "Face locator: 1 = cascade, 2 = neural")
	batchCmd.Flags().Int("workers", runtime.NumCPU(), "Number of images checked in parallel")
	batchCmd.Flags().Bool("json", false, "Print JSON")
}

func runBatch(cmd *cobra.Command, args []string) error {
	interactive()
	version := mustGetInt(cmd, "version")
	asJSON := mustGetBool(cmd, "json")

	c, err := container.NewContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner := &batch.Runner{
		Workers: mustGetInt(cmd, "workers"),
		Check: func(ctx context.Context, path string) (models.QualityResult, error) {
			return c.Service().CheckFile(ctx, path, version)
		},
	}

	var bar *progressbar.ProgressBar
	if !asJSON {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Checking images"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
		runner.Progress = func(batch.Result) { _ = bar.Add(1) }
	}

	results, summary, err := runner.RunDir(ctx, args[0])
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("cannot read folder %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, struct {
			Results []batch.Result `json:"results"`
			Summary batch.Summary  `json:"summary"`
		}{results, summary})
	}
	printBatch(out, results, summary)
	return nil
}

func printBatch(w io.Writer, results []batch.Result, s batch.Summary) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No image files found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tFACE\tMULTI\tEYES\tSMILE\tCONTRAST\tBRIGHT\tCENTER\tVERDICT")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\terror: %s\n", res.Name, res.Error)
			continue
		}
		r := res.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", res.Name,
			mark(r.FaceDetected), mark(r.MoreThanOneFace), mark(r.EyesIsGood), mark(r.IsSmiling),
			mark(r.ContrastIsGood), mark(r.BrightnessIsGood), mark(r.FaceIsCentralized), verdict(r))
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal: %d  Acceptable: %d  Rejected: %d (no face: %d)  Failed: %d\n",
		s.Total, s.Acceptable, s.Rejected, s.NoFace, s.Failed)
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func verdict(r models.QualityResult) string {
	switch {
	case !r.FaceDetected:
		return "no face"
	case r.Acceptable():
		return "acceptable"
	}
	return "rejected"
}
