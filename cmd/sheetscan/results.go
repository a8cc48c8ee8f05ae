package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradebot/sheetscan/internal/store"
)

var resultsLimit int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Print the most recent scan records, newest first",
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

		records, err := st.ListScans(ctx, resultsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no scans recorded")
			return nil
		}

		for _, rec := range records {
			name := "NEEDS REVIEW"
			if rec.Match.Entry != nil {
				name = rec.Match.Entry.FullName
			}
			flags := ""
			if rec.Flags.ExtractionIncomplete {
				flags += " [incomplete]"
			}
			if rec.Flags.RegionOutOfBounds {
				flags += " [region-oob]"
			}
			fmt.Printf("#%06d  %-28s %2d/%2d (%5.1f%%)  unanswered=%d ambiguous=%d  %s%s\n",
				rec.Sheet.Seq, name,
				rec.Grade.Score, rec.Grade.Graded, rec.Grade.Percentage,
				rec.Grade.Unanswered, rec.Grade.Ambiguous,
				rec.ScannedAt.Local().Format("2006-01-02 15:04:05"), flags)

			if rec.Match.Entry == nil && len(rec.Match.Suggestions) > 0 {
				for _, s := range rec.Match.Suggestions {
					fmt.Printf("          suggestion: %-28s %.2f\n", s.FullName, s.Score)
				}
			}
		}
		return nil
	},
}

func init() {
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "maximum records to print")
	rootCmd.AddCommand(resultsCmd)
}
