// Package cli holds the faceqa commands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anime-shed/face-inspector-go/internal/logger"
)

var (
	logLevel string
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "faceqa",
	Short: "Check whether photographs are acceptable ID-style portraits",
	Long: `faceqa checks portraits for exactly one centred, well lit,
non-smiling face with open eyes.

It runs as an HTTP service (serve), checks single images (check) or whole
folders (batch), and manages the threshold file used by every check (config).

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Keep JSON log lines instead of text for interactive commands")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if logLevel != "" {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logger.WithField("level", logLevel).Warn("Unknown log level, keeping default")
		} else {
			logger.SetLevel(level)
		}
	}
}

// interactive switches to text logs unless --json-logs was given.
func interactive() {
	if !jsonLogs {
		logger.UseTextFormatter()
	}
}
