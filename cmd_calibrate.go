package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lensfocus/capture"
	"lensfocus/report"
	"lensfocus/session"
	"lensfocus/target"
)

// NewCalibrateCommand fits the camera from images saved by an earlier
// focus session.
func NewCalibrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate [dir]",
		Short: "Calibrate from previously captured images",
		Long: `Detect the checkerboard in every calib_<n>.jpg of dir (the capture
directory by default) and fit the fisheye model to the accepted views.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.CaptureDir
			if len(args) > 0 {
				dir = args[0]
			}

			paths, err := session.CaptureFiles(dir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.Errorf("no captured images in %s", dir)
			}
			logrus.WithFields(logrus.Fields{
				"dir":    dir,
				"images": len(paths),
			}).Info("calibrating from disk")

			board := target.Default
			off := &session.Offline{
				Load:       capture.LoadImage,
				Detector:   capture.NewChessboardDetector(board),
				Imager:     capture.NewImager(),
				Calibrator: session.NewCalibrator(cfg.MinSamples, report.Paths{Dump: cfg.DumpPath, Text: cfg.ReportPath}),
				Board:      board,
				Outputs: session.Outputs{
					Undistorted:     cfg.UndistortedPath,
					Comparison:      cfg.ComparisonPath,
					PreviewMaxWidth: cfg.PreviewMaxWidth,
				},
				Out: cmd.OutOrStdout(),
			}
			_, err = off.Run(paths)
			return err
		},
	}
}
