package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lensfocus/capture"
	"lensfocus/overlay"
	"lensfocus/report"
	"lensfocus/session"
	"lensfocus/target"
)

// NewFocusCommand runs the live focus and capture loop
func NewFocusCommand() *cobra.Command {
	var device int

	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Live focus helper with capture and calibration",
		Long: `Open the camera and score checkerboard sharpness on every frame.

Keys: q quit, r reset maximum sharpness, c capture a calibration image,
k calibrate from the captured images.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("device") {
				cfg.Device = device
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			board := target.Default
			open := func() (session.Source, error) {
				d, err := capture.OpenDevice(cfg.Device)
				if err != nil {
					return nil, err
				}
				return d, nil
			}
			window := capture.NewWindow(cfg.WindowName, cfg.ResultWindowName, overlay.NewRenderer(board.Cols, board.Rows))
			cal := session.NewCalibrator(cfg.MinSamples, report.Paths{Dump: cfg.DumpPath, Text: cfg.ReportPath})

			ctrl := session.NewController(open, capture.NewChessboardDetector(board), capture.NewSharpnessScorer(), window, capture.NewImager(), cal, cfg.HistorySize)
			ctrl.Board = board
			ctrl.CaptureDir = cfg.CaptureDir
			ctrl.Outputs = session.Outputs{
				Undistorted:     cfg.UndistortedPath,
				Comparison:      cfg.ComparisonPath,
				PreviewMaxWidth: cfg.PreviewMaxWidth,
			}

			reason, err := ctrl.Run(ctx)
			entry := logrus.WithFields(logrus.Fields{
				"reason":   reason,
				"captures": ctrl.Captures(),
			})
			// Every loop termination is a normal exit for the process
			if err != nil {
				entry.WithError(err).Error("focus session ended abnormally")
				if h := hint(err); h != "" {
					fmt.Fprintln(os.Stderr, h)
				}
				return nil
			}
			entry.Info("focus session ended")
			return nil
		},
	}

	cmd.Flags().IntVarP(&device, "device", "d", cfg.Device, "camera device index")

	return cmd
}
