// Package config holds the runtime settings shared by all subcommands.
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config is the full set of tunables. Zero values are never valid; start
// from Default.
type Config struct {
	Device      int    `json:"device"`
	CaptureDir  string `json:"captureDir"`
	MinSamples  int    `json:"minSamples"`
	HistorySize int    `json:"historySize"`

	DumpPath        string `json:"dumpPath"`
	ReportPath      string `json:"reportPath"`
	UndistortedPath string `json:"undistortedPath"`
	ComparisonPath  string `json:"comparisonPath"`
	PreviewMaxWidth int    `json:"previewMaxWidth"`

	WindowName       string `json:"windowName"`
	ResultWindowName string `json:"resultWindowName"`

	UVC UVCConfig `json:"uvc"`
}

// UVCConfig drives the control probe
type UVCConfig struct {
	// Unit is the entity id sent in the high byte of wIndex. -1 sends the
	// control interface number there instead.
	Unit      int  `json:"unit"`
	WriteTest bool `json:"writeTest"`
}

// Default returns the settings the tool ships with
func Default() Config {
	return Config{
		Device:      1,
		CaptureDir:  "fisheye_calibration_images",
		MinSamples:  5,
		HistorySize: 30,

		DumpPath:        "fisheye_calibration.npz",
		ReportPath:      "fisheye_calibration.txt",
		UndistortedPath: "fisheye_undistorted_test.jpg",
		ComparisonPath:  "fisheye_comparison.jpg",
		PreviewMaxWidth: 1920,

		WindowName:       "Fisheye Camera Focus Helper",
		ResultWindowName: "Undistorted Result",

		UVC: UVCConfig{
			Unit: -1,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults. LENSFOCUS_DEVICE overrides the device id afterwards.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.Warnf("config file %s does not exist, using defaults", path)
		case err != nil:
			return cfg, errors.Wrapf(err, "read config %s", path)
		default:
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	if v := os.Getenv("LENSFOCUS_DEVICE"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "LENSFOCUS_DEVICE=%q", v)
		}
		cfg.Device = id
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate checks ranges and required paths
func (c *Config) Validate() error {
	if c.Device < 0 {
		return errors.Errorf("device id must be >= 0, got %d", c.Device)
	}
	if c.MinSamples < 1 {
		return errors.Errorf("minSamples must be >= 1, got %d", c.MinSamples)
	}
	if c.HistorySize < 2 {
		return errors.Errorf("historySize must be >= 2, got %d", c.HistorySize)
	}
	if c.PreviewMaxWidth < 0 {
		return errors.Errorf("previewMaxWidth must be >= 0, got %d", c.PreviewMaxWidth)
	}
	if c.UVC.Unit < -1 || c.UVC.Unit > 0xff {
		return errors.Errorf("uvc unit must be -1 or fit in a byte, got %d", c.UVC.Unit)
	}

	paths := map[string]string{
		"captureDir":      c.CaptureDir,
		"dumpPath":        c.DumpPath,
		"reportPath":      c.ReportPath,
		"undistortedPath": c.UndistortedPath,
		"comparisonPath":  c.ComparisonPath,
	}
	for name, p := range paths {
		if p == "" {
			return errors.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
