package main

import (
	"context"
	"image"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradebot/sheetscan/internal/frame"
	"github.com/gradebot/sheetscan/internal/intake"
	"github.com/gradebot/sheetscan/internal/model"
	"github.com/gradebot/sheetscan/internal/ocr"
	"github.com/gradebot/sheetscan/internal/pipeline"
	"github.com/gradebot/sheetscan/internal/store"
)

var (
	scanSourceDir string
	scanLoop      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the intake loop until interrupted",
	Long: "Polls the frame source for insertion edges and processes each captured " +
		"sheet through extraction, matching, grading and persistence. " +
		"--source points at a directory of frames replayed in lexical order, " +
		"standing in for the capture hardware.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reader := ocr.NewTesseract(cfg.OCR)
		pipe, err := pipeline.New(ctx, cfg, reader, st)
		if err != nil {
			return err
		}

		source, err := frame.NewDirectorySource(frame.NewCache(), scanSourceDir, scanLoop)
		if err != nil {
			return err
		}

		onCapture := func(ctx context.Context, sheet model.CapturedSheet, img image.Image) error {
			_, err := pipe.ProcessSheet(ctx, sheet, img)
			return err
		}
		onFailure := func(seq uint64, err error) {
			zap.L().Error("capture attempt failed", zap.Uint64("seq", seq), zap.Error(err))
		}

		machine, err := intake.NewMachine(cfg.Intake, source, cfg.Capture.Dir, onCapture, onFailure)
		if err != nil {
			return err
		}

		lastSeq, err := st.MaxSeq(ctx)
		if err != nil {
			return err
		}
		machine.ResumeFrom(lastSeq)

		if err := machine.Run(ctx); err != nil && !eris.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSourceDir, "source", "", "directory of frame images to replay (required)")
	scanCmd.Flags().BoolVar(&scanLoop, "loop", false, "replay the frame directory in a loop")
	_ = scanCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(scanCmd)
}
