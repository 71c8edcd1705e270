package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anime-shed/face-inspector-go/internal/config"
	"github.com/anime-shed/face-inspector-go/internal/container"
	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/validation"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the check thresholds",
	Long: `Show or change the thresholds stored in FACEQA_THRESHOLDS_FILE.
Changes are validated and written back to the file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		printThresholds(cmd.OutOrStdout(), store.Path(), store.Get())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value [key=value...]",
	Short: "Change thresholds",
	Example: `  faceqa config set brightness_threshold=110
  faceqa config set smile_ratio_threshold=1.9 min_mouth_width=25`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := parseAssignments(args)
		if err != nil {
			return err
		}
		if err := validation.ValidateThresholdsPatch(patch); err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		updated, err := store.Update(patch)
		if err != nil {
			return err
		}
		printThresholds(cmd.OutOrStdout(), store.Path(), updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

func openStore() (*thresholds.Store, error) {
	interactive()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return container.OpenThresholds(cfg)
}

// parseAssignments turns key=value arguments into a threshold patch.
func parseAssignments(args []string) (map[string]float64, error) {
	patch := make(map[string]float64, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", key, raw)
		}
		if _, dup := patch[key]; dup {
			return nil, fmt.Errorf("%s given more than once", key)
		}
		patch[key] = v
	}
	return patch, nil
}

func printThresholds(w io.Writer, path string, t thresholds.Thresholds) {
	values := t.ToMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if path != "" {
		fmt.Fprintf(w, "# %s\n", path)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, strconv.FormatFloat(values[k], 'f', -1, 64))
	}
	tw.Flush()
}
