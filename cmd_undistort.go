package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lensfocus/capture"
	"lensfocus/report"
)

// NewUndistortCommand applies a stored calibration to an image
func NewUndistortCommand() *cobra.Command {
	var (
		calibration string
		output      string
		comparison  string
	)

	cmd := &cobra.Command{
		Use:   "undistort <image>",
		Short: "Undistort an image with a saved calibration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if calibration == "" {
				calibration = cfg.DumpPath
			}
			if output == "" {
				output = cfg.UndistortedPath
			}

			res, err := report.Load(calibration)
			if err != nil {
				return err
			}

			frame, err := capture.LoadImage(args[0])
			if err != nil {
				return err
			}
			defer frame.Close()

			if size := frame.Size(); size != res.ImageSize {
				return errors.Errorf("image %s is %v but the calibration was fitted at %v", args[0], size, res.ImageSize)
			}

			imager := capture.NewImager()
			und, err := imager.Undistort(frame, res.Intrinsics)
			if err != nil {
				return err
			}
			defer und.Close()

			if err := imager.Save(und, output); err != nil {
				return err
			}
			logrus.WithField("path", output).Info("undistorted image written")

			if comparison != "" {
				if err := imager.Compare(frame, und, comparison, cfg.PreviewMaxWidth); err != nil {
					return err
				}
				logrus.WithField("path", comparison).Info("comparison written")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&calibration, "calibration", "", "calibration dump to load (defaults to the configured dump path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "undistorted image path (defaults to the configured path)")
	cmd.Flags().StringVar(&comparison, "compare", "", "also write a side-by-side comparison to this path")

	return cmd
}
