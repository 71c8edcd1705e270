package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anime-shed/face-inspector-go/internal/container"
	"github.com/anime-shed/face-inspector-go/internal/service"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

var checkCmd = &cobra.Command{
	Use:   "check <image-path-or-url>",
	Short: "Check one image",
	Long: `Check one image and print the seven verdicts.

The argument is a local file or an http(s) URL.

Example:
  faceqa check photo.jpg
  faceqa check --version 2 --detailed https://example.com/portrait.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Int("version", 1, "Face locator: 1 = cascade, 2 = neural")
	checkCmd.Flags().Bool("detailed", false, "Print measurements and the reason behind every verdict")
	checkCmd.Flags().Bool("json", false, "Print JSON")
}

// refFor treats http(s) arguments as URLs and anything else as a path.
func refFor(arg string) service.ImageRef {
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return service.ImageRef{URL: arg}
	}
	return service.ImageRef{Path: arg}
}

func runCheck(cmd *cobra.Command, args []string) error {
	interactive()
	version := mustGetInt(cmd, "version")
	detailed := mustGetBool(cmd, "detailed")
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
	out := cmd.OutOrStdout()
	ref := refFor(args[0])

	if detailed {
		report, err := c.Service().CheckDetailed(ctx, ref, version)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, report)
		}
		printReport(out, report)
		return nil
	}

	result, err := c.Service().Check(ctx, ref, version)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, result)
	}
	printResult(out, result)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult lists the seven verdicts in their wire order.
func printResult(w io.Writer, r models.QualityResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range []struct {
		name  string
		value bool
	}{
		{"face_detected", r.FaceDetected},
		{"more_than_one_face", r.MoreThanOneFace},
		{"eyes_is_good", r.EyesIsGood},
		{"is_smiling", r.IsSmiling},
		{"contrast_is_good", r.ContrastIsGood},
		{"brightness_is_good", r.BrightnessIsGood},
		{"face_is_centralized", r.FaceIsCentralized},
	} {
		fmt.Fprintf(tw, "%s:\t%t\n", row.name, row.value)
	}
	tw.Flush()
}

func printReport(w io.Writer, r *models.DetailedReport) {
	fmt.Fprintf(w, "Invocation: %s (%s, %.3fs)\n", r.InvocationID, r.Measurements.DetectorStrategy, r.ProcessingTimeSec)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tPASSED\tVALUE\tTHRESHOLD\tMESSAGE")
	for _, c := range r.Checks {
		fmt.Fprintf(tw, "%s\t%t\t%.2f\t%.2f\t%s\n", c.CheckName, c.Passed, c.ActualValue, c.ThresholdValue, c.Message)
	}
	tw.Flush()

	if r.Acceptable {
		fmt.Fprintln(w, "\nAcceptable portrait")
	} else {
		fmt.Fprintln(w, "\nRejected:")
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	for _, a := range r.DebugArtifacts {
		fmt.Fprintf(w, "Debug image: %s\n", a)
	}
}
