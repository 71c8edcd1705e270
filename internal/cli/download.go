package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/anime-shed/face-inspector-go/internal/downloader"
	"github.com/anime-shed/face-inspector-go/internal/storage"
	"github.com/anime-shed/face-inspector-go/internal/vision/pigo"
)

var downloadCmd = &cobra.Command{
	Use:   "download <folder>",
	Short: "Download sample portraits or the pigo cascades",
	Long: `Download generated sample portraits into a folder, one file per image
named generated_image_<timestamp>_<n>.jpg.

With --cascades the pigo face, pupil and mouth landmark cascades are
downloaded instead, ready to be used as FACEQA_MODELS_DIR/pigo.

Example:
  faceqa download ./photos
  faceqa download --count 25 ./photos
  faceqa download --cascades ./models/pigo`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().Int("count", 10, "Number of portraits to download")
	downloadCmd.Flags().Int("concurrency", 4, "Parallel downloads")
	downloadCmd.Flags().Bool("cascades", false, "Download the pigo cascades instead of portraits")
}

func runDownload(cmd *cobra.Command, args []string) error {
	interactive()
	dir := args[0]
	count := mustGetInt(cmd, "count")
	cascades := mustGetBool(cmd, "cascades")

	total := count
	if cascades {
		total = len(pigo.RemoteFiles())
	} else if count < 1 {
		return fmt.Errorf("--count must be at least 1 (got %d)", count)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
	d := downloader.New(storage.NewHTTPImageFetcher(30*time.Second), mustGetInt(cmd, "concurrency"))
	d.Progress = func() { _ = bar.Add(1) }

	if cascades {
		if err := d.Files(ctx, pigo.RemoteBase, dir, pigo.RemoteFiles()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nCascades saved to: %s\n", dir)
		return nil
	}

	paths, err := d.Portraits(ctx, downloader.PortraitURL, dir, count)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Image saved to: %s\n", p)
	}
	return nil
}
