package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lensfocus/capture"
	"lensfocus/config"
	"lensfocus/session"
)

var (
	logLevel   = "info"
	configPath = "lensfocus.json"

	cfg = config.Default()
)

func init() {
	// HighGUI windows must be driven from the main thread on some platforms
	runtime.LockOSThread()
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

// NewCommand builds the root command with every subcommand attached
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lensfocus",
		Short:        "Focus and calibrate fisheye USB cameras",
		Long:         "lensfocus scores checkerboard sharpness live while you turn the focus ring, collects calibration views and fits a fisheye camera model.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")

	cmd.AddCommand(
		NewFocusCommand(),
		NewCalibrateCommand(),
		NewUndistortCommand(),
		NewUVCCommand(),
	)

	return cmd
}

// hint suggests a remedy for errors the operator can fix
func hint(err error) string {
	switch {
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "Check that the camera is plugged in and not in use by another program."
	case errors.Is(err, session.ErrInsufficientSamples):
		return fmt.Sprintf("Capture at least %d images with the checkerboard fully visible.", cfg.MinSamples)
	}
	return ""
}

func handleCmdError(err error) {
	if h := hint(err); h != "" {
		fmt.Fprintln(os.Stderr, h)
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}
