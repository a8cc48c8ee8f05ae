package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradebot/sheetscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sheetscan",
	Short: "Answer-sheet capture, extraction, matching and grading station",
	Long: "Watches a fixed-position capture device for inserted answer sheets, " +
		"extracts bubble marks and the handwritten name, resolves the name " +
		"against the roster, grades against the answer key and persists the result.",
	Version: fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}
