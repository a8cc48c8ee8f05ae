package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradebot/sheetscan/internal/store"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the roster of known identities",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Upsert roster entries from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entries, err := store.LoadRosterFile(args[0])
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := st.ImportRoster(ctx, entries)
		if err != nil {
			return err
		}
		zap.L().Info("roster imported", zap.Int("entries", n), zap.String("file", args[0]))
		fmt.Printf("imported %d roster entries\n", n)
		return nil
	},
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every roster entry in load order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entries, err := st.Roster(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%4d  %-30s %s\n", e.ID, e.FullName, e.Role)
		}
		return nil
	},
}

func init() {
	rosterCmd.AddCommand(rosterImportCmd, rosterListCmd)
	rootCmd.AddCommand(rosterCmd)
}
