// Package main implements the screensage CLI - an always-on desktop
// assistant core that watches captured screen frames, detects coding
// problems, and generates validated candidate solutions.
//
// Commands:
//   - watch    - run the pipeline against a frame spool directory
//   - process  - run one pipeline turn for a single image
//   - query    - full-text search over stored extractions
//   - solve    - re-run generation+validation for a saved problem
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"screensage/internal/config"
	"screensage/internal/logging"
)

var (
	flagConfig    string
	flagWorkspace string
	flagDB        string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "screensage",
	Short: "Watches your screen for coding problems and drafts solutions",
	Long: "screensage turns captured screen frames into structured coding problems\n" +
		"and validated candidate solutions: adaptive change detection, OCR with\n" +
		"layout analysis, rule-based screen classification, pattern-based problem\n" +
		"detection, LLM solution generation with caching, and sandboxed test\n" +
		"validation.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A local .env is optional.
		_ = godotenv.Load()

		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagWorkspace != "" {
			loaded.Workspace = flagWorkspace
		}
		if flagDB != "" {
			loaded.Store.Path = flagDB
		}
		cfg = loaded

		return logging.Initialize(cfg.Workspace, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
			JSONFormat: cfg.Logging.JSONFormat,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "workspace directory (default .screensage)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path override")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(solveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
